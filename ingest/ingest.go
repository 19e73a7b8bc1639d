package ingest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/TFMV/forcegraph/errors"
	"github.com/TFMV/forcegraph/models"
)

// LinkProcessor parses raw bytes into a link list.
type LinkProcessor interface {
	ProcessData(data []byte) ([]models.Link, error)
	GetName() string
}

// DefaultLinks returns the built-in Chord ring: six peers, each linked to
// its successor.
func DefaultLinks() []models.Link {
	return []models.Link{
		{Source: "120.0.0.0", Target: "120.0.0.2"},
		{Source: "120.0.0.2", Target: "120.0.0.3"},
		{Source: "120.0.0.3", Target: "120.0.0.4"},
		{Source: "120.0.0.4", Target: "120.0.0.5"},
		{Source: "120.0.0.5", Target: "120.0.0.6"},
		{Source: "120.0.0.6", Target: "120.0.0.0"},
	}
}

// Load reads links from path, choosing a processor by file extension.
// An empty path yields DefaultLinks.
func Load(path string) ([]models.Link, error) {
	if path == "" {
		return DefaultLinks(), nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".db" || ext == ".sqlite" || ext == ".sqlite3" {
		return LoadChordTable(path)
	}

	processor, err := GetProcessor(strings.TrimPrefix(ext, "."))
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	links, err := processor.ProcessData(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return links, nil
}

// GetProcessor returns the appropriate processor for the given format
func GetProcessor(format string) (LinkProcessor, error) {
	switch strings.ToLower(format) {
	case "json":
		return &JSONProcessor{}, nil
	case "yaml", "yml":
		return &YAMLProcessor{}, nil
	case "csv":
		return &CSVProcessor{}, nil
	case "log", "txt":
		return &LogProcessor{}, nil
	default:
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unsupported format: %s", format)
	}
}

// JSONProcessor handles JSON link lists.
type JSONProcessor struct{}

// GetName returns the name of the processor
func (p *JSONProcessor) GetName() string {
	return "JSON Processor"
}

// jsonEndpoint accepts an identifier string or an integer index into the
// document's node list.
type jsonEndpoint struct {
	name  string
	index int
	isIdx bool
}

func (e *jsonEndpoint) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &e.name)
	}
	e.isIdx = true
	return json.Unmarshal(data, &e.index)
}

type jsonLink struct {
	Source jsonEndpoint `json:"source"`
	Target jsonEndpoint `json:"target"`
}

// ProcessData accepts a bare array of links, or an object with a "links"
// array. In the object form, integer endpoints index into "nodes" by name.
func (p *JSONProcessor) ProcessData(data []byte) ([]models.Link, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "empty JSON document")
	}

	var doc struct {
		Nodes []struct {
			Name string          `json:"name"`
			ID   json.RawMessage `json:"id"`
		} `json:"nodes"`
		Links []jsonLink `json:"links"`
	}

	var err error
	if data[0] == '[' {
		err = json.Unmarshal(data, &doc.Links)
	} else {
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "error parsing JSON")
	}
	nodes := doc.Nodes

	resolve := func(i int, e jsonEndpoint) (string, error) {
		if !e.isIdx {
			return e.name, nil
		}
		if e.index < 0 || e.index >= len(nodes) {
			return "", errors.New(errors.ErrCodeInvalidInput, "link %d references node index %d of %d", i, e.index, len(nodes))
		}
		n := nodes[e.index]
		if n.Name != "" {
			return n.Name, nil
		}
		// nameless nodes fall back to their id, quoted or not
		return strings.Trim(string(n.ID), `"`), nil
	}

	links := make([]models.Link, 0, len(doc.Links))
	for i, l := range doc.Links {
		source, err := resolve(i, l.Source)
		if err != nil {
			return nil, err
		}
		target, err := resolve(i, l.Target)
		if err != nil {
			return nil, err
		}
		links = append(links, models.Link{Source: source, Target: target})
	}
	return links, nil
}

// YAMLProcessor handles YAML documents with a top-level "links" list.
type YAMLProcessor struct{}

// GetName returns the name of the processor
func (p *YAMLProcessor) GetName() string {
	return "YAML Processor"
}

// ProcessData processes YAML data
func (p *YAMLProcessor) ProcessData(data []byte) ([]models.Link, error) {
	var doc struct {
		Links []models.Link `yaml:"links"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "error parsing YAML")
	}
	return doc.Links, nil
}

// CSVProcessor handles CSV data
type CSVProcessor struct{}

// GetName returns the name of the processor
func (p *CSVProcessor) GetName() string {
	return "CSV Processor"
}

// ProcessData reads a header row naming the source and target columns,
// then one link per row.
func (p *CSVProcessor) ProcessData(data []byte) ([]models.Link, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "error reading CSV header")
	}

	sourceIdx, targetIdx := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "source", "from", "src", "self":
			sourceIdx = i
		case "target", "to", "dst", "successor":
			targetIdx = i
		}
	}
	if sourceIdx == -1 || targetIdx == -1 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "CSV must contain source and target columns")
	}

	var links []models.Link
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "error reading CSV row")
		}
		links = append(links, models.Link{
			Source: strings.TrimSpace(row[sourceIdx]),
			Target: strings.TrimSpace(row[targetIdx]),
		})
	}
	return links, nil
}

// LogProcessor handles one relationship per line, e.g. "A -> B".
type LogProcessor struct{}

// GetName returns the name of the processor
func (p *LogProcessor) GetName() string {
	return "Log Processor"
}

// logSeparators are tried in order on every line.
var logSeparators = []string{" -> ", " => ", " connects to ", " links to ", " successor "}

// ProcessData processes log data. Blank lines, "#" comments and lines
// without a known separator are skipped.
func (p *LogProcessor) ProcessData(data []byte) ([]models.Link, error) {
	var links []models.Link
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, sep := range logSeparators {
			parts := strings.Split(line, sep)
			if len(parts) == 2 {
				links = append(links, models.Link{
					Source: strings.TrimSpace(parts[0]),
					Target: strings.TrimSpace(parts[1]),
				})
				break
			}
		}
	}
	return links, nil
}
