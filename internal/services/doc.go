// Package services wraps the external collaborators a sync run depends on.
//
// # Playlist and audio source
//
// [YouTubeService] implements [PlaylistSource] and [AudioSource] on top of github.com/kkdai/youtube/v2.
// Playlists are fetched anonymously with the web client; entries become [models.Item]s keyed by
// their canonical watch URL. Audio streams prefer audio-only formats with the highest bitrate and
// fall back to any format carrying audio channels.
//
// # Transcoding
//
// [FFmpeg] implements [Transcoder] by running the ffmpeg binary to produce MP3 files with
// title and artist tags.
//
// # Thumbnails
//
// [ThumbnailFetcher] downloads thumbnail images with resty. Non-200 responses are errors.
//
// # Error Handling
//
// Services wrap errors with sentinels from the shared package:
//   - [shared.ErrFetch] : the playlist could not be listed; the run aborts
//   - [shared.ErrAction] : a per-item lookup, download or transcode failed; the item is retried
//   - [shared.ErrNoAudio] : the video has no format with audio
package services
