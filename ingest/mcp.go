package ingest

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/examprep/docpipe"
	"github.com/hazyhaar/examprep/junkfilter"
	"github.com/hazyhaar/examprep/kit"
)

// BatchArgs is the input of examprep_extract_batch.
type BatchArgs struct {
	Papers   []docpipe.FileArg `json:"papers"`
	Syllabus *docpipe.FileArg  `json:"syllabus,omitempty"`
}

// Decode converts the arguments to a Batch.
func (a BatchArgs) Decode() (Batch, error) {
	var b Batch
	for _, p := range a.Papers {
		f, err := p.Decode()
		if err != nil {
			return Batch{}, err
		}
		b.Papers = append(b.Papers, f)
	}
	if a.Syllabus != nil {
		f, err := a.Syllabus.Decode()
		if err != nil {
			return Batch{}, err
		}
		b.Syllabus = &f
	}
	return b, nil
}

type cleanArgs struct {
	Text string `json:"text"`
}

// RegisterMCP registers examprep_extract_batch and examprep_clean.
func (o *Orchestrator) RegisterMCP(srv *mcp.Server) {
	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "examprep_extract_batch",
		Description: "Extract and join the text of exam papers (in order) and an optional syllabus.",
		InputSchema: kit.InputSchema(map[string]any{
			"papers":   map[string]any{"type": "array", "items": docpipe.FileArgSchema()},
			"syllabus": docpipe.FileArgSchema(),
		}, []string{"papers"}),
	}, func(ctx context.Context, req any) (any, error) {
		b, err := req.(*BatchArgs).Decode()
		if err != nil {
			return nil, err
		}
		return o.Extract(ctx, b)
	}, kit.DecodeJSON[BatchArgs]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "examprep_clean",
		Description: "Strip exam boilerplate, short and duplicate lines from text.",
		InputSchema: kit.InputSchema(map[string]any{
			"text": map[string]any{"type": "string"},
		}, []string{"text"}),
	}, func(_ context.Context, req any) (any, error) {
		text := req.(*cleanArgs).Text
		if text == "" {
			return nil, errors.New("text is required")
		}
		return map[string]string{"cleaned": junkfilter.Clean(text)}, nil
	}, kit.DecodeJSON[cleanArgs]())
}
