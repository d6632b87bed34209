package scenegen

import (
	"fmt"
	"io"
	"math/rand"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/annel0/entity-renderer/internal/entity"
	"github.com/annel0/entity-renderer/internal/vec"
)

// Entry сущность сцены в YAML-файле
type Entry struct {
	ID         string            `yaml:"id,omitempty"`
	Properties entity.Properties `yaml:"properties"`
}

// Scene YAML-файл сцены
type Scene struct {
	Name     string  `yaml:"name,omitempty"`
	Seed     int64   `yaml:"seed,omitempty"`
	Entities []Entry `yaml:"entities"`
}

// Resolved сущность с разобранным идентификатором
type Resolved struct {
	ID         entity.ID
	Properties entity.Properties
}

// Resolve разбирает идентификаторы; пустой получает детерминированный UUID по имени сцены и индексу
func (s *Scene) Resolve() ([]Resolved, error) {
	out := make([]Resolved, 0, len(s.Entities))
	for i, e := range s.Entities {
		var id entity.ID
		if e.ID == "" {
			id = uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("scene:%s:%d", s.Name, i)))
		} else {
			parsed, err := uuid.Parse(e.ID)
			if err != nil {
				return nil, fmt.Errorf("entity #%d: некорректный id %q: %w", i, e.ID, err)
			}
			id = parsed
		}
		if e.Properties.Type == entity.TypeUnknown {
			return nil, fmt.Errorf("entity #%d (%s): не указан type", i, id)
		}
		out = append(out, Resolved{ID: id, Properties: e.Properties})
	}
	return out, nil
}

// Load читает сцену из YAML-файла
func Load(path string) (*Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode разбирает сцену из YAML
func Decode(r io.Reader) (*Scene, error) {
	var s Scene
	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode scene: %w", err)
	}
	return &s, nil
}

// Encode записывает сцену в YAML
func (s *Scene) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return err
	}
	return enc.Close()
}

// Options параметры процедурной сцены
type Options struct {
	Seed       int64
	Size       float64 // сторона квадратной площадки, м
	Step       float64 // шаг сетки, м
	NoiseScale float64
	Threshold  float64 // шум выше порога даёт объект
	MaxHeight  float64
	Zones      int // вложенные зоны вокруг центра
	Scripted   float64
	ScriptURL  string
}

// DefaultOptions площадка 64x64 м
func DefaultOptions(seed int64) Options {
	return Options{
		Seed:       seed,
		Size:       64,
		Step:       4,
		NoiseScale: 0.05,
		Threshold:  0.55,
		MaxHeight:  6,
		Zones:      3,
		Scripted:   0.1,
	}
}

// Generate строит сцену: рельеф из коробок по шуму Перлина и вложенные зоны.
// Результат детерминирован для одинаковых Options.
func Generate(opts Options) *Scene {
	noise := NewNoise(opts.Seed)
	rng := rand.New(rand.NewSource(opts.Seed))
	s := &Scene{Name: fmt.Sprintf("generated-%d", opts.Seed), Seed: opts.Seed}

	// зоны от большей к меньшей, каждая вдвое меньше предыдущей
	side := opts.Size
	for i := 0; i < opts.Zones; i++ {
		p := entity.DefaultProperties()
		p.Type = entity.TypeZone
		p.Name = fmt.Sprintf("zone-%d", i)
		p.Dimensions = vec.Vec3{side, side, side}
		p.Shape = entity.ShapeBox
		s.Entities = append(s.Entities, Entry{Properties: p})
		side /= 2
	}

	half := opts.Size / 2
	for x := -half; x < half; x += opts.Step {
		for z := -half; z < half; z += opts.Step {
			h := noise.At2D(x*opts.NoiseScale, z*opts.NoiseScale)
			if h < opts.Threshold {
				continue
			}
			height := max(h*opts.MaxHeight, entity.DefaultDimension)

			p := entity.DefaultProperties()
			p.Type = entity.TypeBox
			p.Name = fmt.Sprintf("box-%.0f-%.0f", x, z)
			p.Position = vec.Vec3{x, height / 2, z}
			p.Dimensions = vec.Vec3{opts.Step * 0.8, height, opts.Step * 0.8}
			if opts.ScriptURL != "" && rng.Float64() < opts.Scripted {
				p.Script = opts.ScriptURL
			}
			s.Entities = append(s.Entities, Entry{Properties: p})
		}
	}
	return s
}
