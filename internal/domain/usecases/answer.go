// answer.go orchestrates the full pipeline: question -> intent -> candidates
// -> plan -> generated code -> execution -> lineage.
package usecases

import (
	"context"
	"fmt"

	"github.com/tablerag/tablerag-go/internal/domain/entities"
	"github.com/tablerag/tablerag-go/internal/domain/ports"
)

// AnswerRequest is one analytical question plus its retrieval constraints.
type AnswerRequest struct {
	Question      string   `json:"question"`
	TopK          int      `json:"top_k,omitempty"`
	AllowFiles    []string `json:"allow_files,omitempty"`
	DisallowFiles []string `json:"disallow_files,omitempty"`
	// DataPath points the runner at the selected table's data. Empty skips
	// execution; the lineage report then reflects the plan and code only.
	DataPath string `json:"data_path,omitempty"`
}

// AnswerResult is the pipeline's JSON envelope. Candidates may be empty,
// meaning "no answer possible" - that is a result, not an error.
type AnswerResult struct {
	Intent     entities.Intent         `json:"intent"`
	Candidates []entities.Candidate    `json:"candidates"`
	Plan       *entities.Plan          `json:"plan,omitempty"`
	Code       string                  `json:"code,omitempty"`
	Output     string                  `json:"output,omitempty"`
	Lineage    *entities.LineageReport `json:"lineage,omitempty"`
}

// AnswerUseCase wires the four core stages to the code-generation and
// execution collaborators. Each call owns its own Intent/Candidate/Plan
// instances; nothing here is shared mutable state.
type AnswerUseCase struct {
	parser    *IntentParser
	retriever *RetrieverUseCase
	compiler  *PlanCompiler
	generator ports.CodeGenerator
	runner    ports.CodeRunner
}

// NewAnswerUseCase creates an AnswerUseCase with injected dependencies.
// The runner may be nil when execution is disabled.
func NewAnswerUseCase(
	parser *IntentParser,
	retriever *RetrieverUseCase,
	compiler *PlanCompiler,
	generator ports.CodeGenerator,
	runner ports.CodeRunner,
) *AnswerUseCase {
	return &AnswerUseCase{
		parser:    parser,
		retriever: retriever,
		compiler:  compiler,
		generator: generator,
		runner:    runner,
	}
}

// Answer runs the pipeline end to end against the top candidate.
func (uc *AnswerUseCase) Answer(ctx context.Context, req AnswerRequest) (*AnswerResult, error) {
	intent := uc.parser.Parse(req.Question)

	candidates, err := uc.retriever.SearchWithIntent(ctx, intent, RetrieveOptions{
		TopK:          req.TopK,
		AllowFiles:    req.AllowFiles,
		DisallowFiles: req.DisallowFiles,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieving candidates: %w", err)
	}

	result := &AnswerResult{
		Intent:     intent,
		Candidates: candidates,
	}
	if len(candidates) == 0 {
		return result, nil
	}

	top := candidates[0]
	plan := uc.compiler.Rewrite(intent, top)
	if err := plan.Validate(top.Columns); err != nil {
		// Compiler bug, not a bad question: fail loudly rather than hand a
		// broken plan to the code generator.
		return nil, fmt.Errorf("plan validation: %w", err)
	}
	result.Plan = &plan

	code, err := uc.generator.GenerateCode(ctx, &plan, req.Question, top)
	if err != nil {
		return nil, fmt.Errorf("generating code: %w", err)
	}
	result.Code = code

	if uc.runner != nil && req.DataPath != "" {
		output, err := uc.runner.Run(ctx, code, req.DataPath)
		if err != nil {
			return nil, fmt.Errorf("executing code: %w", err)
		}
		result.Output = output
	}

	discovered := ExtractColumns(code)
	lineage := MergeLineage(top.Columns, plan.Columns(), discovered, nil)
	result.Lineage = &lineage

	return result, nil
}
