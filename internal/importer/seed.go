package importer

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SeedStation is one hand-curated station in a seed file.
type SeedStation struct {
	Name            string   `yaml:"name"`
	StreamURL       string   `yaml:"stream_url"`
	Homepage        string   `yaml:"homepage"`
	Description     string   `yaml:"description"`
	Language        string   `yaml:"language"`
	Country         string   `yaml:"country"`
	CountryCode     string   `yaml:"country_code"`
	Area            string   `yaml:"area"` // city or region, used when country_code is missing
	Tags            []string `yaml:"tags"`
	Genre           string   `yaml:"genre"`
	StationType     string   `yaml:"station_type"`
	Logo            string   `yaml:"logo"`
	Favicon         string   `yaml:"favicon"`
	Codec           string   `yaml:"codec"`
	Bitrate         int      `yaml:"bitrate"`
	MetadataAPIURL  string   `yaml:"metadata_api_url"`
	MetadataAPIType string   `yaml:"metadata_api_type"`
}

type seedFile struct {
	Stations []SeedStation `yaml:"stations"`
}

// LoadSeed parses a seed document and checks required fields.
func LoadSeed(r io.Reader) ([]SeedStation, error) {
	var doc seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("parse seed: %w", err)
	}

	for i, s := range doc.Stations {
		if strings.TrimSpace(s.Name) == "" || strings.TrimSpace(s.StreamURL) == "" {
			return nil, fmt.Errorf("seed station %d: name and stream_url are required", i+1)
		}
	}
	return doc.Stations, nil
}

// LoadSeedFile is LoadSeed for a path on disk.
func LoadSeedFile(path string) ([]SeedStation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadSeed(f)
}
