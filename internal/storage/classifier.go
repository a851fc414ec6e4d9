package storage

import (
	"fmt"
	"mime"
	"path"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/shenikar/incident_documents/internal/models"
)

// DefaultMaxFileSize - 16 MiB
const DefaultMaxFileSize int64 = 16 << 20

// CategoryOther - категория по умолчанию
const CategoryOther = "other"

var categoryTable = map[string][]string{
	"documents":     {"pdf", "doc", "docx", "txt", "md", "rtf"},
	"images":        {"jpg", "jpeg", "png", "gif", "bmp", "tiff"},
	"spreadsheets":  {"xls", "xlsx", "csv"},
	"presentations": {"ppt", "pptx"},
	"archives":      {"zip", "rar", "7z"},
	CategoryOther:   {"json", "xml", "log"},
}

// Classifier проверяет расширение и размер файла до того, как байты
// попадут в хранилище. Таблица расширений строится один раз.
type Classifier struct {
	byExt   map[string]string
	maxSize int64
}

func NewClassifier(maxSize int64) (*Classifier, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("max file size must be positive, got %d", maxSize)
	}
	byExt := make(map[string]string)
	for category, exts := range categoryTable {
		for _, ext := range exts {
			if prev, dup := byExt[ext]; dup {
				return nil, fmt.Errorf("extension %q listed in both %q and %q", ext, prev, category)
			}
			byExt[ext] = category
		}
	}
	return &Classifier{byExt: byExt, maxSize: maxSize}, nil
}

func extensionOf(filename string) string {
	ext := path.Ext(strings.ReplaceAll(filename, `\`, "/"))
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowed возвращает false для файлов без расширения и с неизвестным расширением
func (c *Classifier) IsAllowed(filename string) bool {
	ext := extensionOf(filename)
	if ext == "" {
		return false
	}
	_, ok := c.byExt[ext]
	return ok
}

func (c *Classifier) CategoryOf(filename string) string {
	if category, ok := c.byExt[extensionOf(filename)]; ok {
		return category
	}
	return CategoryOther
}

func (c *Classifier) MaxSize() int64 {
	return c.maxSize
}

// CheckSize сравнивает измеренный размер с лимитом
func (c *Classifier) CheckSize(size int64) error {
	if size < 0 {
		return models.NewValidationError("size", "unknown file size")
	}
	if size > c.maxSize {
		return models.NewValidationError("size", fmt.Sprintf("file too large: %s exceeds the %s limit",
			humanize.IBytes(uint64(size)), humanize.IBytes(uint64(c.maxSize))))
	}
	return nil
}

// Validate - полная проверка файла перед передачей
func (c *Classifier) Validate(filename string, size int64) error {
	if strings.TrimSpace(filename) == "" {
		return models.NewValidationError("filename", "empty filename")
	}
	if !c.IsAllowed(filename) {
		ext := extensionOf(filename)
		if ext == "" {
			return models.NewValidationError("filename", "file has no extension")
		}
		return models.NewValidationError("filename", fmt.Sprintf("extension %q is not allowed", ext))
	}
	return c.CheckSize(size)
}

// ограничение колонки incident_documents.content_type
const maxContentTypeLength = 100

// ContentType выбирает MIME-тип: заявленный клиентом, затем по расширению,
// затем по содержимому. Если ничего не подошло - application/octet-stream.
func (c *Classifier) ContentType(declared, filename string, head []byte) string {
	if declared != "" && declared != models.DefaultContentType && len(declared) <= maxContentTypeLength {
		if _, _, err := mime.ParseMediaType(declared); err == nil {
			return declared
		}
	}
	if byExt := mime.TypeByExtension("." + extensionOf(filename)); byExt != "" {
		return byExt
	}
	if len(head) > 0 {
		return mimetype.Detect(head).String()
	}
	return models.DefaultContentType
}

// Categories возвращает копию таблицы с отсортированными расширениями
func (c *Classifier) Categories() map[string][]string {
	out := make(map[string][]string, len(categoryTable))
	for ext, category := range c.byExt {
		out[category] = append(out[category], ext)
	}
	for category := range out {
		sort.Strings(out[category])
	}
	return out
}
