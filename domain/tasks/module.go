package tasks

import (
	"go.uber.org/fx"

	"github.com/alex-d4v/Tiphys/pkg/embeddings"
)

// Module provides the tasks domain
var Module = fx.Module("tasks",
	fx.Provide(NewRepository),
	fx.Provide(fx.Annotate(
		func(s *embeddings.Service) Embedder { return s },
		fx.As(new(Embedder)),
	)),
	fx.Provide(NewFinder),
	fx.Provide(NewWorkingSet),
	fx.Provide(fx.Annotate(
		func(r *Repository) Store { return r },
		fx.As(new(Store)),
	)),
	fx.Provide(NewManager),
	fx.Invoke(NewSweeper),
)
