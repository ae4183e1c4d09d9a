package textgen

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/David-Botos/data-quality/pkg/masking"
	"github.com/David-Botos/data-quality/pkg/model"
)

var fencePattern = regexp.MustCompile("```(?:sql)?\\n?")

const systemPrompt = `You are an expert SQL developer. Generate only valid SQL queries based on user requests.

Rules:
1. Return ONLY the SQL query, no explanations or markdown
2. Use proper SQL syntax for SQLite
3. If schema information is provided, use it to create accurate queries
4. For data manipulation queries, be careful with syntax
5. Always use semicolon at the end
%s
Generate SQL query for the following request:`

// Completer is the chat-completions call the generator depends on
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Generator writes SQL from natural-language requests without sending real
// table or column names to the completion service
type Generator struct {
	client Completer
	masker *masking.IdentifierMasker
	logger *zap.Logger
}

// NewGenerator creates a generator over a completion client and a shared masker
func NewGenerator(client Completer, masker *masking.IdentifierMasker, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.L()
	}
	return &Generator{client: client, masker: masker, logger: logger.Named("textgen")}
}

// Generation holds both sides of one generated statement
type Generation struct {
	MaskedRequest string
	MaskedSchema  string
	MaskedSQL     string
	SQL           string
}

// Generate masks the schema and the request, asks for a statement and restores
// the original identifiers in it
func (g *Generator) Generate(ctx context.Context, request string, schema []model.TableMetadata) (*Generation, error) {
	_, maskedSchema := g.masker.MaskSchema(schema)
	maskedRequest := g.masker.MaskText(request)

	schemaBlock := ""
	if maskedSchema != "" {
		schemaBlock = fmt.Sprintf("\nDatabase Schema: %s\n", maskedSchema)
	}

	content, err := g.client.Complete(ctx, fmt.Sprintf(systemPrompt, schemaBlock), maskedRequest)
	if err != nil {
		return nil, err
	}

	maskedSQL := StripFences(content)
	gen := &Generation{
		MaskedRequest: maskedRequest,
		MaskedSchema:  maskedSchema,
		MaskedSQL:     maskedSQL,
		SQL:           g.masker.UnmaskText(maskedSQL),
	}
	g.logger.Info("Generated SQL", zap.Int("tables", len(schema)), zap.Int("length", len(gen.SQL)))
	return gen, nil
}

// StripFences removes markdown code fences around a generated statement
func StripFences(s string) string {
	return strings.TrimSpace(fencePattern.ReplaceAllString(strings.TrimSpace(s), ""))
}
