package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/IliaW/jamaah-scrape-worker/internal/model"
	"github.com/spf13/viper"
)

var (
	ErrDuplicateID = errors.New("duplicate mosque id")
	ErrUnknownKind = errors.New("unknown source kind")
)

// Registry is the read-only list of mosques to scrape. Order is significant: results follow it.
type Registry struct {
	mosques []model.MosqueDescriptor
	byID    map[string]int
}

func New(mosques []model.MosqueDescriptor) (*Registry, error) {
	r := &Registry{
		mosques: make([]model.MosqueDescriptor, 0, len(mosques)),
		byID:    make(map[string]int, len(mosques)),
	}
	for _, m := range mosques {
		m.ID = strings.TrimSpace(m.ID)
		if m.ID == "" {
			return nil, fmt.Errorf("mosque %q: empty id", m.Name)
		}
		if _, ok := r.byID[m.ID]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, m.ID)
		}
		if m.SourceKind == "" {
			m.SourceKind = model.GenericHTML
		}
		switch m.SourceKind {
		case model.GenericHTML:
		case model.PDFTable:
			if m.SourceParams.Layout == "" {
				m.SourceParams.Layout = model.MonthlyTable
			}
		case model.CustomHTML:
			if m.SourceParams.Site == "" {
				return nil, fmt.Errorf("mosque %s: custom_html needs source_params.site", m.ID)
			}
		default:
			return nil, fmt.Errorf("%w: %s (mosque %s)", ErrUnknownKind, m.SourceKind, m.ID)
		}
		if m.URL == "" && m.SourceParams.URLTemplate == "" {
			return nil, fmt.Errorf("mosque %s: no url", m.ID)
		}
		r.byID[m.ID] = len(r.mosques)
		r.mosques = append(r.mosques, m)
	}
	return r, nil
}

// Default returns the built-in Kent registry.
func Default() *Registry {
	r, err := New(kentMosques)
	if err != nil {
		panic(err)
	}
	return r
}

// Load reads a YAML file with a top-level "mosques" list. An empty path returns Default().
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default(), nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read registry file: %w", err)
	}
	var mosques []model.MosqueDescriptor
	if err := v.UnmarshalKey("mosques", &mosques); err != nil {
		return nil, fmt.Errorf("decode registry file: %w", err)
	}
	if len(mosques) == 0 {
		return nil, fmt.Errorf("registry file %s has no mosques", path)
	}
	return New(mosques)
}

// All returns a copy of the descriptors in registry order.
func (r *Registry) All() []model.MosqueDescriptor {
	out := make([]model.MosqueDescriptor, len(r.mosques))
	copy(out, r.mosques)
	return out
}

func (r *Registry) Get(id string) (model.MosqueDescriptor, bool) {
	i, ok := r.byID[id]
	if !ok {
		return model.MosqueDescriptor{}, false
	}
	return r.mosques[i], true
}

func (r *Registry) Len() int {
	return len(r.mosques)
}
