package storage

import (
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	keyTimeLayout   = "20060102_150405"
	maxSafeNameLen  = 128
	fallbackName    = "file"
	namespacePrefix = "incident_"
)

// KeyGenerator строит ключи объектов вида
// incident_<id>/<YYYYMMDD_HHMMSS>_<uuid>_<имя файла>.
// Безопасен для конкурентного использования.
type KeyGenerator struct {
	token func() string
}

func NewKeyGenerator() *KeyGenerator {
	return &KeyGenerator{token: func() string { return uuid.NewString() }}
}

// Generate возвращает уникальный ключ в пространстве имен инцидента
func (g *KeyGenerator) Generate(incidentID uuid.UUID, filename string, now time.Time) string {
	return fmt.Sprintf("%s%s_%s_%s",
		Namespace(incidentID),
		now.UTC().Format(keyTimeLayout),
		g.token(),
		SafeFilename(filename),
	)
}

// Namespace возвращает префикс ключей инцидента (с завершающим слешем)
func Namespace(incidentID uuid.UUID) string {
	return namespacePrefix + incidentID.String() + "/"
}

// InNamespace проверяет, что ключ лежит непосредственно в пространстве инцидента
func InNamespace(incidentID uuid.UUID, key string) bool {
	rest, ok := strings.CutPrefix(key, Namespace(incidentID))
	return ok && rest != "" && !strings.ContainsAny(rest, `/\`) && path.Clean(key) == key
}

// foldToASCII убирает диакритику: "réseau" -> "reseau".
// transform.Chain хранит состояние, поэтому цепочка создается на каждый вызов.
func foldToASCII(s string) string {
	stripMarks := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		return s
	}
	return folded
}

// SafeFilename оставляет от имени, пришедшего от клиента, только базовое имя
// из символов [A-Za-z0-9._-]. Разделители каталогов и ".." не переживают
// очистку, так что имя не может вывести ключ за пределы префикса.
func SafeFilename(filename string) string {
	if i := strings.LastIndexAny(filename, `/\`); i >= 0 {
		filename = filename[i+1:]
	}

	var b strings.Builder
	for _, r := range foldToASCII(filename) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte('_')
		}
	}

	name := strings.TrimLeft(b.String(), "._")
	name = strings.TrimRight(name, ".")
	if name == "" {
		return fallbackName
	}

	if len(name) > maxSafeNameLen {
		ext := path.Ext(name)
		if len(ext) >= maxSafeNameLen {
			ext = ""
		}
		name = name[:maxSafeNameLen-len(ext)] + ext
	}
	return name
}
