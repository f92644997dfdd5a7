// Package models constructs classifier trainers from the trainer config.
package models

import (
	"log/slog"
	"os"

	"github.com/HatiCode/millwright/cmd/trainer/config"
	"github.com/HatiCode/millwright/pkg/classify"
)

// New creates a classifier trainer for the configured model family.
func New(cfg *config.Config, logger *slog.Logger) classify.Trainer {
	switch cfg.Model {
	case "logreg":
		logger.Info("initializing logistic regression trainer",
			"l2", cfg.LogregL2,
			"epochs", cfg.LogregEpochs,
			"learn_rate", cfg.LearnRate,
			"folds", cfg.CVFolds,
		)
		return &classify.LogisticTrainer{
			L2Strengths: cfg.LogregL2,
			Epochs:      cfg.LogregEpochs,
			LearnRate:   cfg.LearnRate,
			Folds:       cfg.CVFolds,
			Seed:        cfg.CVSeed,
		}

	case "forest":
		logger.Info("initializing random forest trainer",
			"depths", cfg.ForestDepths,
			"trees", cfg.ForestTrees,
			"folds", cfg.CVFolds,
		)
		return &classify.ForestTrainer{
			Depths: cfg.ForestDepths,
			Trees:  cfg.ForestTrees,
			Folds:  cfg.CVFolds,
			Seed:   cfg.CVSeed,
		}

	default:
		logger.Error("invalid model type", "model", cfg.Model)
		os.Exit(1)
	}

	return nil
}
