package formatter

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// SheetHeader is the first row of every thumbnail workbook.
var SheetHeader = []any{"Thumbnail", "Title", "URL"}

const (
	thumbnailColumn = "A"
	thumbnailWidth  = 20
	rowHeight       = 90
)

// ErrUnsupportedImage is returned for thumbnails the workbook cannot embed.
var ErrUnsupportedImage = errors.New("unsupported image type")

// SheetRow is one spreadsheet entry. Image may be nil.
type SheetRow struct {
	Title string
	URL   string
	Image []byte
}

// Workbook is an XLSX file with a Thumbnail/Title/URL layout.
type Workbook struct {
	path  string
	file  *excelize.File
	sheet string
	next  int
}

// OpenWorkbook opens the workbook at path, or creates one with the header row.
func OpenWorkbook(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		f = excelize.NewFile()
		sheet := f.GetSheetName(f.GetActiveSheetIndex())
		if err := f.SetSheetRow(sheet, "A1", &SheetHeader); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
		if err := f.SetColWidth(sheet, thumbnailColumn, thumbnailColumn, thumbnailWidth); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to size thumbnail column: %w", err)
		}
		return &Workbook{path: path, file: f, sheet: sheet, next: 2}, nil
	case err != nil:
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read workbook %s: %w", path, err)
	}
	return &Workbook{path: path, file: f, sheet: sheet, next: max(len(rows)+1, 2)}, nil
}

// Path returns the file the workbook saves to.
func (w *Workbook) Path() string { return w.path }

// Rows returns the number of data rows below the header.
func (w *Workbook) Rows() int { return w.next - 2 }

// AppendRow writes the row to the next free line, embedding the image in the thumbnail column.
func (w *Workbook) AppendRow(row SheetRow) error {
	var ext string
	if row.Image != nil {
		var ok bool
		if ext, ok = ImageExtension(row.Image); !ok {
			return fmt.Errorf("%w: %s", ErrUnsupportedImage, http.DetectContentType(row.Image))
		}
	}

	cell, err := excelize.CoordinatesToCellName(2, w.next)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.sheet, cell, &[]any{row.Title, row.URL}); err != nil {
		return fmt.Errorf("failed to write row %d: %w", w.next, err)
	}
	if err := w.file.SetRowHeight(w.sheet, w.next, rowHeight); err != nil {
		return fmt.Errorf("failed to size row %d: %w", w.next, err)
	}

	if row.Image != nil {
		pic := &excelize.Picture{
			Extension: ext,
			File:      row.Image,
			Format:    &excelize.GraphicOptions{AutoFit: true, AltText: row.Title},
		}
		if err := w.file.AddPictureFromBytes(w.sheet, fmt.Sprintf("%s%d", thumbnailColumn, w.next), pic); err != nil {
			return fmt.Errorf("failed to embed thumbnail in row %d: %w", w.next, err)
		}
	}

	w.next++
	return nil
}

// DiscardLast removes the most recently appended row and its thumbnail. The header is never removed.
func (w *Workbook) DiscardLast() error {
	if w.next <= 2 {
		return nil
	}
	row := w.next - 1
	if err := w.file.DeletePicture(w.sheet, fmt.Sprintf("%s%d", thumbnailColumn, row)); err != nil {
		return fmt.Errorf("failed to remove thumbnail in row %d: %w", row, err)
	}
	if err := w.file.RemoveRow(w.sheet, row); err != nil {
		return fmt.Errorf("failed to remove row %d: %w", row, err)
	}
	w.next = row
	return nil
}

// Save writes the workbook to its path, creating the parent directory if needed.
func (w *Workbook) Save() error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := w.file.SaveAs(w.path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", w.path, err)
	}
	return nil
}

// Close releases the workbook's resources without saving.
func (w *Workbook) Close() error {
	return w.file.Close()
}

// ImageExtension sniffs data and returns the extension excelize expects, or false for
// formats it cannot embed (such as WebP).
func ImageExtension(data []byte) (string, bool) {
	switch http.DetectContentType(data) {
	case "image/jpeg":
		return ".jpg", true
	case "image/png":
		return ".png", true
	case "image/gif":
		return ".gif", true
	case "image/bmp":
		return ".bmp", true
	default:
		return "", false
	}
}
