package config

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// FileExtension marks configuration files inside directories.
const FileExtension = ".hcl"

func (cb *ConfigBuilder) GetBlocks(bodies []hcl.Body) (hcl.Blocks, hcl.Diagnostics) {
	diags := hcl.Diagnostics{}

	var blocks hcl.Blocks

	for _, body := range bodies {
		content, contentDiags := body.Content(configSchema)
		diags = diags.Extend(contentDiags)
		if content != nil {
			blocks = append(blocks, content.Blocks...)
		}
	}

	return blocks, diags
}

// ParseConfigFiles parses every source in order. A source is a file or
// directory path, raw []byte, or an fs.FS such as an embed.FS. Directories
// and file systems contribute every *.hcl file below them.
func ParseConfigFiles(sources ...any) ([]hcl.Body, hcl.Diagnostics) {
	p := &sourceParser{parser: hclparse.NewParser()}

	for _, source := range sources {
		switch v := source.(type) {
		case string:
			p.parsePath(v)
		case []byte:
			p.parse(v, fmt.Sprintf("<bytes@%p>", v))
		case fs.FS:
			p.walk(v, func(name string) string { return name })
		default:
			p.fail("Invalid source type", fmt.Sprintf("Invalid source type: %T", v))
		}
	}

	return p.bodies, p.diags
}

type sourceParser struct {
	parser *hclparse.Parser
	bodies []hcl.Body
	diags  hcl.Diagnostics
}

func (p *sourceParser) fail(summary, detail string) {
	p.diags = p.diags.Append(&hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  summary,
		Detail:   detail,
	})
}

func (p *sourceParser) parse(content []byte, filename string) {
	file, diags := p.parser.ParseHCL(content, filename)
	p.diags = p.diags.Extend(diags)
	if file != nil {
		p.bodies = append(p.bodies, file.Body)
	}
}

// parsePath reads a single file, or walks a directory through os.DirFS while
// keeping the on-disk names in diagnostics.
func (p *sourceParser) parsePath(name string) {
	info, err := os.Stat(name)
	if err != nil {
		p.fail("Failed to stat file", fmt.Sprintf("Error statting %s: %s", name, err))
		return
	}

	if info.IsDir() {
		p.walk(os.DirFS(name), func(rel string) string {
			return filepath.Join(name, filepath.FromSlash(rel))
		})
		return
	}

	content, err := os.ReadFile(name)
	if err != nil {
		p.fail("Failed to read file", fmt.Sprintf("Error reading %s: %s", name, err))
		return
	}
	p.parse(content, name)
}

func (p *sourceParser) walk(fsys fs.FS, display func(string) string) {
	err := fs.WalkDir(fsys, ".", func(rel string, d fs.DirEntry, err error) error {
		if err != nil {
			p.fail("Failed to access file or directory", fmt.Sprintf("Error accessing %s: %s", display(rel), err))
			return nil
		}
		if d.IsDir() || path.Ext(rel) != FileExtension {
			return nil
		}

		content, err := fs.ReadFile(fsys, rel)
		if err != nil {
			p.fail("Failed to read file", fmt.Sprintf("Error reading %s: %s", display(rel), err))
			return nil
		}
		p.parse(content, display(rel))
		return nil
	})

	if err != nil {
		p.fail("Failed to walk configuration files", err.Error())
	}
}
