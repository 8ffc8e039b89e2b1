package docpipe

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/examprep/kit"
)

// RegisterMCP registers the docpipe tools on an MCP server.
func (p *Pipeline) RegisterMCP(srv *mcp.Server) {
	p.registerExtractTool(srv)
	p.registerFormatsTool(srv)
}

// FileArg is a file passed inline to an MCP tool.
type FileArg struct {
	Name       string `json:"name"`
	MediaType  string `json:"media_type"`
	DataBase64 string `json:"data_base64"`
}

// Decode returns the UploadedFile carried by the argument.
func (a FileArg) Decode() (UploadedFile, error) {
	data, err := base64.StdEncoding.DecodeString(a.DataBase64)
	if err != nil {
		return UploadedFile{}, fmt.Errorf("%s: data_base64: %w", a.Name, err)
	}
	return UploadedFile{Name: a.Name, MediaType: a.MediaType, Data: data}, nil
}

// FileArgSchema is the JSON schema of FileArg.
func FileArgSchema() map[string]any {
	return kit.InputSchema(map[string]any{
		"name":        map[string]any{"type": "string", "description": "Original file name"},
		"media_type":  map[string]any{"type": "string", "description": "Declared media type (image/*, application/pdf, docx)"},
		"data_base64": map[string]any{"type": "string", "description": "File content, standard base64"},
	}, []string{"name", "media_type", "data_base64"})
}

func (p *Pipeline) registerExtractTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "examprep_extract",
		Description: "Extract text from one exam document (image, digital or scanned PDF, docx).",
		InputSchema: FileArgSchema(),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		f, err := req.(*FileArg).Decode()
		if err != nil {
			return nil, err
		}
		return p.Extract(ctx, f)
	}

	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeJSON[FileArg]())
}

func (p *Pipeline) registerFormatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "examprep_formats",
		Description: "List the accepted media types.",
		InputSchema: kit.InputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		return map[string]any{"media_types": SupportedMediaTypes()}, nil
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
