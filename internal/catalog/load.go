package catalog

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type fileProduct struct {
	ID     string     `yaml:"id"`
	Title  string     `yaml:"title"`
	Author string     `yaml:"author"`
	Price  yamlPrice  `yaml:"price"`
	Img    string     `yaml:"img"`
	Images stringList `yaml:"images"`
	Genre  stringList `yaml:"genre"`
	Desc   string     `yaml:"desc"`
}

type catalogFile struct {
	Products []fileProduct `yaml:"products"`
}

// stringList accepts either a scalar or a sequence of scalars.
type stringList []string

func (l *stringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*l = stringList{node.Value}
		return nil
	case yaml.SequenceNode:
		var out []string
		if err := node.Decode(&out); err != nil {
			return err
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("line %d: expected string or list", node.Line)
	}
}

type yamlPrice struct{ decimal.Decimal }

func (p *yamlPrice) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: price must be a number", node.Line)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(node.Value))
	if err != nil {
		return fmt.Errorf("line %d: price %q: %w", node.Line, node.Value, err)
	}
	p.Decimal = d
	return nil
}

// Parse decodes a YAML catalog document.
func Parse(data []byte, renderer *Renderer) (*Catalog, error) {
	var doc catalogFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}
	products := make([]Product, 0, len(doc.Products))
	for _, fp := range doc.Products {
		images := []string(fp.Images)
		if len(images) == 0 && fp.Img != "" {
			images = []string{fp.Img}
		}
		products = append(products, Product{
			ID:          fp.ID,
			Title:       fp.Title,
			Author:      fp.Author,
			Price:       fp.Price.Decimal,
			Images:      images,
			Genres:      fp.Genre,
			Description: fp.Desc,
		})
	}
	return New(products, renderer)
}

// LoadFile reads and parses the catalog file at path.
func LoadFile(path string, renderer *Renderer) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data, renderer)
}
