// Package prefs persists display settings and favorite locations as a JSON document.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/units"
	"github.com/kjstillabower/weather-dashboard/internal/validation"
)

var (
	// ErrDuplicateFavorite is returned when a favorite with the same name exists.
	ErrDuplicateFavorite = errors.New("favorite already exists")
	// ErrFavoriteNotFound is returned when removing an unknown favorite.
	ErrFavoriteNotFound = errors.New("favorite not found")
	// ErrUnknownSetting is returned by Set for an unrecognised key.
	ErrUnknownSetting = errors.New("unknown setting")
)

// Settings are the user's display preferences.
type Settings struct {
	Unit         units.TemperatureUnit `json:"unit" validate:"oneof=C F"`
	WindUnit     units.WindUnit        `json:"wind_unit" validate:"oneof=km/h mph m/s"`
	PressureUnit units.PressureUnit    `json:"pressure_unit" validate:"oneof=hPa inHg"`
	ThemeColor   string                `json:"theme_color" validate:"oneof=blue purple green orange"`
}

// DefaultSettings returns C, km/h, hPa and blue.
func DefaultSettings() Settings {
	return Settings{
		Unit:         units.Celsius,
		WindUnit:     units.KilometersPerHour,
		PressureUnit: units.Hectopascal,
		ThemeColor:   "blue",
	}
}

// SettingKeys lists the keys accepted by Store.Set, in display order.
var SettingKeys = []string{"unit", "wind_unit", "pressure_unit", "theme_color"}

// Get returns the value of key as a string.
func (s Settings) Get(key string) (string, error) {
	switch key {
	case "unit":
		return string(s.Unit), nil
	case "wind_unit":
		return string(s.WindUnit), nil
	case "pressure_unit":
		return string(s.PressureUnit), nil
	case "theme_color":
		return s.ThemeColor, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSetting, key)
}

// Document is the persisted file layout.
type Document struct {
	Settings  Settings          `json:"settings"`
	Favorites []models.Favorite `json:"favorites"`
}

func defaultDocument() Document {
	return Document{Settings: DefaultSettings(), Favorites: []models.Favorite{}}
}

// Store reads and writes the document at path. Every mutation is written through.
type Store struct {
	path   string
	logger *zap.Logger

	mu  sync.Mutex
	doc Document
}

// Open loads the document at path. A missing file yields defaults. An unreadable
// or corrupt file is logged and replaced by defaults on the next write.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("prefs path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{path: path, logger: logger, doc: defaultDocument()}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read prefs: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		logger.Warn("prefs file is corrupt, using defaults", zap.String("path", path), zap.Error(err))
		return s, nil
	}
	s.doc = normalize(doc, logger)
	return s, nil
}

// normalize fills missing settings with defaults and drops invalid favorites.
func normalize(doc Document, logger *zap.Logger) Document {
	def := DefaultSettings()
	if doc.Settings.Unit == "" {
		doc.Settings.Unit = def.Unit
	}
	if doc.Settings.WindUnit == "" {
		doc.Settings.WindUnit = def.WindUnit
	}
	if doc.Settings.PressureUnit == "" {
		doc.Settings.PressureUnit = def.PressureUnit
	}
	if doc.Settings.ThemeColor == "" {
		doc.Settings.ThemeColor = def.ThemeColor
	}
	if err := validation.Struct(doc.Settings); err != nil {
		logger.Warn("invalid settings in prefs file, using defaults", zap.Error(err))
		doc.Settings = def
	}

	favs := make([]models.Favorite, 0, len(doc.Favorites))
	for _, f := range doc.Favorites {
		if err := validation.Struct(f); err != nil {
			logger.Warn("dropping invalid favorite", zap.String("name", f.Name), zap.Error(err))
			continue
		}
		favs = append(favs, f)
	}
	doc.Favorites = favs
	return doc
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Settings returns the current settings.
func (s *Store) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Settings
}

// Set updates one setting by key and persists it.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.doc.Settings
	var err error
	switch key {
	case "unit":
		next.Unit, err = units.ParseTemperatureUnit(value)
	case "wind_unit":
		next.WindUnit, err = units.ParseWindUnit(value)
	case "pressure_unit":
		next.PressureUnit, err = units.ParsePressureUnit(value)
	case "theme_color":
		next.ThemeColor = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSetting, key)
	}
	if err != nil {
		return err
	}
	if err := validation.Struct(next); err != nil {
		return err
	}

	doc := s.doc
	doc.Settings = next
	return s.commitLocked(doc)
}

// Favorites returns a copy of the saved favorites in insertion order.
func (s *Store) Favorites() []models.Favorite {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.doc.Favorites)
}

// AddFavorite validates f and appends it. Names are unique, compared case-insensitively.
func (s *Store) AddFavorite(f models.Favorite) error {
	f.Name = strings.TrimSpace(f.Name)
	if err := validation.Struct(f); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexLocked(f.Name) >= 0 {
		return fmt.Errorf("%w: %q", ErrDuplicateFavorite, f.Name)
	}
	doc := s.doc
	doc.Favorites = append(slices.Clone(s.doc.Favorites), f)
	return s.commitLocked(doc)
}

// RemoveFavorite deletes the favorite with the given name.
func (s *Store) RemoveFavorite(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(strings.TrimSpace(name))
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrFavoriteNotFound, name)
	}
	doc := s.doc
	doc.Favorites = slices.Delete(slices.Clone(s.doc.Favorites), i, i+1)
	return s.commitLocked(doc)
}

// IsFavorite reports whether c matches a saved favorite's rounded coordinate.
func (s *Store) IsFavorite(c models.Coordinate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := c.CacheKey()
	for _, f := range s.doc.Favorites {
		if (models.Coordinate{Latitude: f.Latitude, Longitude: f.Longitude}).CacheKey() == key {
			return true
		}
	}
	return false
}

// Coordinates returns the favorites' coordinates, for cache warm-up.
func Coordinates(favs []models.Favorite) []models.Coordinate {
	out := make([]models.Coordinate, 0, len(favs))
	for _, f := range favs {
		out = append(out, models.Coordinate{Latitude: f.Latitude, Longitude: f.Longitude})
	}
	return out
}

func (s *Store) indexLocked(name string) int {
	return slices.IndexFunc(s.doc.Favorites, func(f models.Favorite) bool {
		return strings.EqualFold(f.Name, name)
	})
}

// commitLocked writes doc to disk and adopts it only when the write succeeds.
func (s *Store) commitLocked(doc Document) error {
	if err := writeFile(s.path, doc); err != nil {
		return err
	}
	s.doc = doc
	return nil
}

// writeFile replaces path atomically via a temp file in the same directory.
func writeFile(path string, doc Document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode prefs: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".prefs-*.json")
	if err != nil {
		return fmt.Errorf("create temp prefs: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(raw, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod prefs: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close prefs: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace prefs: %w", err)
	}
	return nil
}
