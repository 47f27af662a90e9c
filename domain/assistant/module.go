package assistant

import (
	"go.uber.org/fx"

	"github.com/alex-d4v/Tiphys/domain/tasks"
	"github.com/alex-d4v/Tiphys/pkg/embeddings"
	"github.com/alex-d4v/Tiphys/pkg/llm"
)

// Module provides the conversational workflow
var Module = fx.Module("assistant",
	fx.Provide(NewConsole),
	fx.Provide(fx.Annotate(
		func(s *llm.Service) Generator { return s },
		fx.As(new(Generator)),
	)),
	fx.Provide(fx.Annotate(
		func(f *tasks.Finder) Retriever { return f },
		fx.As(new(Retriever)),
	)),
	fx.Provide(fx.Annotate(
		func(m *tasks.Manager) Lifecycle { return m },
		fx.As(new(Lifecycle)),
	)),
	fx.Provide(fx.Annotate(
		func(r *tasks.Repository) Catalog { return r },
		fx.As(new(Catalog)),
	)),
	fx.Provide(fx.Annotate(
		func(s *embeddings.Service) DocumentEmbedder { return s },
		fx.As(new(DocumentEmbedder)),
	)),
	fx.Provide(NewWorkflow),
)
