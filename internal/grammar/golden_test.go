package grammar

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/roach88/evolve/internal/schema"
	"github.com/roach88/evolve/internal/symbol"
	"github.com/roach88/evolve/internal/testutil"
	"github.com/roach88/evolve/internal/value"
)

// Golden dumps pin the exact shape of representative grammars.
// Regenerate with: go test ./internal/grammar -run TestGolden -update
func TestGolden(t *testing.T) {
	reorderWriter := schema.NewRecord("T",
		schema.NewField("a", schema.New(schema.KindInt)),
		schema.NewField("b", schema.New(schema.KindString)),
		schema.NewField("c", schema.New(schema.KindLong)),
	)
	reorderReader := schema.NewRecord("T",
		schema.NewField("c", schema.New(schema.KindLong)),
		schema.NewField("a", schema.New(schema.KindLong)),
		schema.NewField("d", schema.New(schema.KindString)).WithDefault(value.String("x")),
	)

	tests := []struct {
		name  string
		build func() (symbol.Symbol, error)
	}{
		{"generate_linked_list", func() (symbol.Symbol, error) {
			return Generate(testutil.LinkedList())
		}},
		{"resolve_linked_list", func() (symbol.Symbol, error) {
			return Resolve(testutil.LinkedList(), testutil.LinkedList())
		}},
		{"resolve_tree", func() (symbol.Symbol, error) {
			return Resolve(testutil.Tree(), testutil.Tree())
		}},
		{"resolve_reorder", func() (symbol.Symbol, error) {
			return Resolve(reorderWriter, reorderReader)
		}},
		{"resolve_user_v1_v2", func() (symbol.Symbol, error) {
			return Resolve(testutil.UserV1(), testutil.UserV2())
		}},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := tt.build()
			require.NoError(t, err)
			g.Assert(t, tt.name, []byte(symbol.Dump(s)))
		})
	}
}
