package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/R3E-Network/opxpress/internal/app/domain/product"
)

// File is the on-disk catalog format used by the seed command.
type File struct {
	Products []product.Product `yaml:"products"`
}

// LoadFile reads a YAML catalog.
func LoadFile(path string) ([]product.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) ([]product.Product, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(f.Products) == 0 {
		return nil, fmt.Errorf("catalog has no products")
	}
	return f.Products, nil
}
