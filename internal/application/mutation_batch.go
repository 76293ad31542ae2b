package application

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/niveshsaharan/centire-shopify/internal/ports"
	apperrors "github.com/niveshsaharan/centire-shopify/pkg/errors"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// maxBatchOperations bounds one composite request so it stays under Shopify's query cost limit
const maxBatchOperations = 25

type mutationKind int

const (
	mutationCreate mutationKind = iota
	mutationDelete
)

// MutationArg is one argument of an aliased mutation field
type MutationArg struct {
	Name  string
	Type  string
	Value any
}

// MutationOp is one aliased field inside a composite mutation
type MutationOp struct {
	Alias string
	Field string
	Args  []MutationArg
	// Result is the payload field that proves success: an object with an id for
	// creates, a non-empty deleted id for deletes
	Result    string
	Selection string
	kind      mutationKind
}

// CreateOp builds an aliased create mutation
func CreateOp(alias, field, result, selection string, args ...MutationArg) MutationOp {
	return MutationOp{Alias: alias, Field: field, Args: args, Result: result, Selection: selection, kind: mutationCreate}
}

// DeleteOp builds an aliased delete mutation
func DeleteOp(alias, field, result string, args ...MutationArg) MutationOp {
	return MutationOp{Alias: alias, Field: field, Args: args, Result: result, kind: mutationDelete}
}

// MutationOutcome is the demultiplexed result of one aliased operation
type MutationOutcome struct {
	Alias string
	OK    bool
	// Data is the raw Result field, e.g. the created object
	Data json.RawMessage
	Err  error
}

type userError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

// MutationBatch composes many aliased mutations into as few requests as possible
type MutationBatch struct {
	name string
	ops  []MutationOp
}

// NewMutationBatch creates an empty batch; name becomes the operation name
func NewMutationBatch(name string) *MutationBatch {
	return &MutationBatch{name: name}
}

func (b *MutationBatch) Add(op MutationOp) {
	b.ops = append(b.ops, op)
}

func (b *MutationBatch) Len() int {
	return len(b.ops)
}

// Document renders the composite mutation for ops and its variables.
// The document is parsed before use so a malformed template fails fast.
func (b *MutationBatch) Document(ops []MutationOp) (string, map[string]any, error) {
	var (
		defs   []string
		fields []string
		vars   = make(map[string]any)
	)

	for i, op := range ops {
		var callArgs []string
		for _, arg := range op.Args {
			variable := fmt.Sprintf("%s_%d", arg.Name, i)
			defs = append(defs, fmt.Sprintf("$%s: %s", variable, arg.Type))
			callArgs = append(callArgs, fmt.Sprintf("%s: $%s", arg.Name, variable))
			vars[variable] = arg.Value
		}

		selection := op.Result
		if op.Selection != "" {
			selection = fmt.Sprintf("%s { %s }", op.Result, op.Selection)
		}
		fields = append(fields, fmt.Sprintf("%s: %s(%s) { %s userErrors { field message } }",
			op.Alias, op.Field, strings.Join(callArgs, ", "), selection))
	}

	doc := fmt.Sprintf("mutation %s(%s) {\n  %s\n}", b.name, strings.Join(defs, ", "), strings.Join(fields, "\n  "))

	parsed, err := parser.ParseQuery(&ast.Source{Name: b.name, Input: doc})
	if err != nil {
		return "", nil, apperrors.Wrap(apperrors.CodeValidation, err, "invalid composite mutation")
	}
	if len(parsed.Operations) != 1 || parsed.Operations[0].Operation != ast.Mutation {
		return "", nil, apperrors.New(apperrors.CodeValidation, "composite document must hold exactly one mutation")
	}

	return doc, vars, nil
}

// Execute sends the batch and returns one outcome per op, in order.
// Transport and top-level GraphQL errors abort the batch; userErrors only fail their own op.
func (b *MutationBatch) Execute(ctx context.Context, client ports.ShopClient) ([]MutationOutcome, error) {
	outcomes := make([]MutationOutcome, 0, len(b.ops))

	for start := 0; start < len(b.ops); start += maxBatchOperations {
		end := start + maxBatchOperations
		if end > len(b.ops) {
			end = len(b.ops)
		}
		chunk := b.ops[start:end]

		doc, vars, err := b.Document(chunk)
		if err != nil {
			return nil, err
		}

		var response map[string]json.RawMessage
		if err := client.GraphQL(ctx, doc, vars, &response); err != nil {
			return nil, transportError(err, fmt.Sprintf("run %s mutation", b.name))
		}

		for _, op := range chunk {
			outcomes = append(outcomes, demultiplex(op, response[op.Alias]))
		}
	}

	return outcomes, nil
}

func demultiplex(op MutationOp, raw json.RawMessage) MutationOutcome {
	outcome := MutationOutcome{Alias: op.Alias}
	if len(raw) == 0 || string(raw) == "null" {
		outcome.Err = fmt.Errorf("%s: no result returned", op.Alias)
		return outcome
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		outcome.Err = fmt.Errorf("%s: failed to decode result: %w", op.Alias, err)
		return outcome
	}

	var userErrors []userError
	if rawErrors, ok := payload["userErrors"]; ok {
		_ = json.Unmarshal(rawErrors, &userErrors)
	}
	if len(userErrors) > 0 {
		messages := make([]string, 0, len(userErrors))
		for _, ue := range userErrors {
			messages = append(messages, ue.Message)
		}
		sort.Strings(messages)
		outcome.Err = fmt.Errorf("%s: %s", op.Alias, strings.Join(messages, "; "))
		return outcome
	}

	outcome.Data = payload[op.Result]
	switch op.kind {
	case mutationCreate:
		var created struct {
			ID string `json:"id"`
		}
		if len(outcome.Data) > 0 {
			_ = json.Unmarshal(outcome.Data, &created)
		}
		outcome.OK = created.ID != ""
	case mutationDelete:
		var deletedID string
		if len(outcome.Data) > 0 {
			_ = json.Unmarshal(outcome.Data, &deletedID)
		}
		outcome.OK = deletedID != ""
	}

	if !outcome.OK {
		outcome.Err = fmt.Errorf("%s: %s missing from response", op.Alias, op.Result)
	}
	return outcome
}

// transportError marks a failed Shopify call as retryable unless it already carries a code
func transportError(err error, action string) error {
	if apperrors.As(err) != nil {
		return err
	}
	return apperrors.Wrap(apperrors.CodeDependency, err, "failed to "+action)
}
