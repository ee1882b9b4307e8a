package cli

import (
	"context"
	"encoding/json"
	"flag"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/subcommands"

	"github.com/ai776/daily-picks/internal/asset"
)

type scanCmd struct {
	source string
}

func (*scanCmd) Name() string     { return "scan" }
func (*scanCmd) Synopsis() string { return "extract trade fields from a brokerage screenshot" }
func (*scanCmd) Usage() string {
	return `picks scan [-source <label>] <image>

  Reads a trade confirmation screenshot and prints the add-asset draft
  filled from it as JSON.
`
}

func (s *scanCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&s.source, "source", string(asset.SourceManual), "source label for the draft")
}

func (s *scanCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	path := f.Arg(0)

	data, err := os.ReadFile(path)
	if err != nil {
		return fail("read image: %v", err)
	}

	a, err := newApp(ctx, os.Stderr)
	if err != nil {
		return fail("startup error: %v", err)
	}
	defer a.close()

	fields, err := a.gateway.ExtractTradeFields(ctx, data, imageMIMEType(path, data))
	if err != nil {
		return fail("scan failed: %v", err)
	}
	if fields == nil {
		return fail("no trade details recognised in %s", path)
	}

	draft := asset.Draft{Source: asset.Source(s.source)}
	draft.Apply(fields.Patch())

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(draft); err != nil {
		return fail("encode draft: %v", err)
	}
	return subcommands.ExitSuccess
}

// imageMIMEType prefers the file extension and falls back to sniffing.
func imageMIMEType(path string, data []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return http.DetectContentType(data)
}
