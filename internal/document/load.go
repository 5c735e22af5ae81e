package document

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/notegrid/internal/ctxlog"
	"github.com/vk/notegrid/internal/fsutil"
	"github.com/vk/notegrid/internal/node"
)

// hclDocFile represents the top-level structure of a document file for
// decoding.
type hclDocFile struct {
	Document *hclDocumentBlock `hcl:"document,block"`
	Chunks   []*hclNodeBlock   `hcl:"chunk,block"`
	Exprs    []*hclNodeBlock   `hcl:"expr,block"`
}

// hclDocumentBlock carries document-wide configuration.
type hclDocumentBlock struct {
	MaximumRetries *int  `hcl:"maximum_retries,optional"`
	Locked         *bool `hcl:"locked,optional"`
}

// hclNodeBlock is the decoded form of a `chunk` or `expr` block.
type hclNodeBlock struct {
	Name string `hcl:"name,label"`
	Code string `hcl:"code"`

	Format         *string  `hcl:"format,optional"`
	Mode           *string  `hcl:"mode,optional"`
	Bounds         *string  `hcl:"bounds,optional"`
	Instance       *string  `hcl:"instance,optional"`
	Requires       []string `hcl:"requires,optional"`
	MaximumRetries *int     `hcl:"maximum_retries,optional"`
	ExecuteContent *bool    `hcl:"execute_content,optional"`
	Rejected       *bool    `hcl:"rejected,optional"`

	Replicates    *int     `hcl:"replicates,optional"`
	QualityWeight *int     `hcl:"quality_weight,optional"`
	CostWeight    *int     `hcl:"cost_weight,optional"`
	SpeedWeight   *int     `hcl:"speed_weight,optional"`
	MinimumScore  *float64 `hcl:"minimum_score,optional"`

	Tags []*hclTagBlock `hcl:"tag,block"`
}

// hclTagBlock is a single execution tag.
type hclTagBlock struct {
	Name   string  `hcl:"name,label"`
	Value  *string `hcl:"value,optional"`
	Global *bool   `hcl:"global,optional"`
}

// Load discovers and parses every .hcl file under the given path (a single
// file or a directory tree) into a Document.
func Load(ctx context.Context, path string) (*Document, error) {
	logger := ctxlog.FromContext(ctx)

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat document path %s: %w", path, err)
	}

	var files []string
	if info.IsDir() {
		files, err = fsutil.FindFilesByExtension(path, ".hcl")
		if err != nil {
			return nil, fmt.Errorf("failed to scan document directory %s: %w", path, err)
		}
	} else {
		files = []string{path}
	}
	logger.Debug("Discovered document files.", "count", len(files))

	doc := New(Config{})
	parser := hclparse.NewParser()
	for _, file := range files {
		if err := loadFile(doc, file, parser); err != nil {
			return nil, err
		}
	}
	doc.Config.Normalize()

	logger.Debug("Document loaded.", "nodes", doc.Len())
	return doc, nil
}

// loadFile parses one HCL file and appends its nodes to the document.
func loadFile(doc *Document, filePath string, parser *hclparse.Parser) error {
	hclFile, diags := parser.ParseHCLFile(filePath)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse document file %s: %w", filePath, diags)
	}

	var parsed hclDocFile
	if diags := gohcl.DecodeBody(hclFile.Body, nil, &parsed); diags.HasErrors() {
		return fmt.Errorf("failed to decode document file %s: %w", filePath, diags)
	}

	if parsed.Document != nil {
		if parsed.Document.MaximumRetries != nil {
			doc.Config.MaximumRetries = *parsed.Document.MaximumRetries
		}
		if parsed.Document.Locked != nil {
			doc.Config.Locked = *parsed.Document.Locked
		}
	}

	for _, block := range parsed.Chunks {
		n, err := newNodeFromHCL(block, node.KindChunk, filePath)
		if err != nil {
			return err
		}
		if err := doc.Add(n); err != nil {
			return fmt.Errorf("error in file %s: %w", filePath, err)
		}
	}
	for _, block := range parsed.Exprs {
		n, err := newNodeFromHCL(block, node.KindExpression, filePath)
		if err != nil {
			return err
		}
		if err := doc.Add(n); err != nil {
			return fmt.Errorf("error in file %s: %w", filePath, err)
		}
	}
	return nil
}

// newNodeFromHCL converts one decoded block into an executable node.
func newNodeFromHCL(block *hclNodeBlock, kind node.Kind, filePath string) (*node.Node, error) {
	prefix := "chunk"
	if kind == node.KindExpression {
		prefix = "expr"
	}

	n := &node.Node{
		ID:             node.ID(fmt.Sprintf("%s.%s", prefix, block.Name)),
		Kind:           kind,
		Name:           block.Name,
		Code:           block.Code,
		Format:         "calc",
		ExecuteContent: true,
	}

	if block.Format != nil {
		n.Format = *block.Format
	}
	if block.Mode != nil {
		mode, err := parseMode(*block.Mode)
		if err != nil {
			return nil, fmt.Errorf("node %s in %s: %w", n.ID, filePath, err)
		}
		n.Mode = mode
	}
	if block.Bounds != nil {
		bounds, err := parseBounds(*block.Bounds)
		if err != nil {
			return nil, fmt.Errorf("node %s in %s: %w", n.ID, filePath, err)
		}
		n.Bounds = bounds
	}
	if block.Instance != nil {
		n.ExecutionInstance = *block.Instance
	}
	for _, req := range block.Requires {
		n.Requires = append(n.Requires, node.ID(req))
	}
	if block.MaximumRetries != nil {
		n.MaximumRetries = *block.MaximumRetries
	}
	if block.ExecuteContent != nil {
		n.ExecuteContent = *block.ExecuteContent
	}
	if block.Rejected != nil {
		n.RejectedSuggestion = *block.Rejected
	}
	if block.Replicates != nil {
		n.Replicates = *block.Replicates
	}
	if block.QualityWeight != nil {
		n.QualityWeight = *block.QualityWeight
	}
	if block.CostWeight != nil {
		n.CostWeight = *block.CostWeight
	}
	if block.SpeedWeight != nil {
		n.SpeedWeight = *block.SpeedWeight
	}
	if block.MinimumScore != nil {
		n.MinimumScore = *block.MinimumScore
	}

	for _, tag := range block.Tags {
		t := node.Tag{Name: tag.Name}
		if tag.Value != nil {
			t.Value = *tag.Value
		}
		if tag.Global != nil {
			t.Global = *tag.Global
		}
		n.Tags = append(n.Tags, t)
	}

	return n, nil
}

func parseMode(s string) (node.Mode, error) {
	switch s {
	case "default", "":
		return node.ModeDefault, nil
	case "always":
		return node.ModeAlways, nil
	case "never":
		return node.ModeNever, nil
	case "locked":
		return node.ModeLocked, nil
	}
	return node.ModeDefault, fmt.Errorf("invalid mode %q: must be 'default', 'always', 'never' or 'locked'", s)
}

func parseBounds(s string) (node.Bounds, error) {
	switch s {
	case "main", "":
		return node.BoundsMain, nil
	case "fork":
		return node.BoundsFork, nil
	case "box":
		return node.BoundsBox, nil
	}
	return node.BoundsMain, fmt.Errorf("invalid bounds %q: must be 'main', 'fork' or 'box'", s)
}
