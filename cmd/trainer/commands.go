package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"model-trainer-service/internal/adapters/primary/http/dto"
	"model-trainer-service/internal/adapters/secondary/artifacts"
	"model-trainer-service/internal/adapters/secondary/sqlite"
	"model-trainer-service/internal/core/domain"
	"model-trainer-service/internal/core/ml"
	"model-trainer-service/internal/core/services"
	"model-trainer-service/internal/tabular"
)

// app holds what the subcommands share once the root has opened the stores.
type app struct {
	db         *sql.DB
	training   *services.TrainingService
	prediction *services.PredictionService
	models     *services.ModelService
}

// newRootCommand builds the command tree:
//   - trainer train --data f.csv --target col --type t [--name n] ...
//   - trainer list [--owner uuid]
//   - trainer predict --name n --data rows.csv [--proba]
func newRootCommand() *cobra.Command {
	var (
		dbPath     string
		modelsDir  string
		jsonOutput bool
		verbose    bool
		a          app
	)

	cmd := &cobra.Command{
		Use:          "trainer",
		Short:        "Train and use tabular classifiers locally",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			if verbose {
				log.SetLevel(log.DebugLevel)
			}

			db, err := sqlite.Open(dbPath)
			if err != nil {
				return fmt.Errorf("open metadata store: %w", err)
			}
			registry := ml.NewRegistry()
			repo := sqlite.NewModelRecordRepository(db)
			store := artifacts.NewOsStore(modelsDir, registry)

			a = app{
				db:         db,
				training:   services.NewTrainingService(registry, repo, store, 1),
				prediction: services.NewPredictionService(registry, 0),
				models:     services.NewModelService(repo, store),
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.db == nil {
				return nil
			}
			return a.db.Close()
		},
	}

	cmd.PersistentFlags().StringVar(&dbPath, "db", "models.db", "SQLite metadata database")
	cmd.PersistentFlags().StringVar(&modelsDir, "models-dir", "saved_models", "Directory holding model artifacts")
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	cmd.AddCommand(trainCmd(&a, &jsonOutput))
	cmd.AddCommand(listCmd(&a, &jsonOutput))
	cmd.AddCommand(predictCmd(&a, &jsonOutput))

	return cmd
}

func trainCmd(a *app, jsonOutput *bool) *cobra.Command {
	var (
		dataPath  string
		target    string
		modelType string
		name      string
		testSize  float64
		kFolds    int
		params    string
		seed      string
		owner     string
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model from a CSV file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			form := dto.FitForm{
				ModelType: modelType,
				Target:    target,
				FileName:  name,
				TestSize:  strconv.FormatFloat(testSize, 'f', -1, 64),
				KFolds:    strconv.Itoa(kFolds),
				Params:    params,
				Seed:      seed,
			}
			job, err := form.ToTrainingJob()
			if err != nil {
				return err
			}
			if job.OwnerID, err = parseOwner(owner); err != nil {
				return err
			}

			table, err := readTable(dataPath)
			if err != nil {
				return err
			}
			if job.Features, job.Labels, err = table.Split(target); err != nil {
				return err
			}

			result, err := a.training.Train(cmd.Context(), job)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if *jsonOutput {
				resp := dto.FitResponse{
					Accuracy:  result.Accuracy,
					FileName:  result.Record.Name,
					ModelType: result.Record.ModelType.String(),
				}
				if result.CV != nil {
					resp.CV = &dto.CrossValidationResponse{
						Folds:  len(result.CV.Scores),
						Scores: result.CV.Scores,
						Mean:   result.CV.Mean,
						StdDev: result.CV.StdDev,
					}
				}
				return writeJSON(out, resp)
			}
			fmt.Fprintf(out, "Trained %s as %q\n", result.Record.ModelType, result.Record.Name)
			fmt.Fprintf(out, "Accuracy: %.4f\n", result.Accuracy)
			if result.CV != nil {
				fmt.Fprintf(out, "Cross-validation: %d folds, std dev %.4f\n", len(result.CV.Scores), result.CV.StdDev)
			}
			fmt.Fprintf(out, "Artifact: %s\n", result.Record.FilePath)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataPath, "data", "", "CSV file with a header row")
	cmd.Flags().StringVar(&target, "target", "", "Label column")
	cmd.Flags().StringVar(&modelType, "type", "", "Model type (logisticregression, randomforest, neuralnet)")
	cmd.Flags().StringVar(&name, "name", "", "Logical model name (default derived from type, owner and time)")
	cmd.Flags().Float64Var(&testSize, "test-size", dto.DefaultTestSize, "Holdout fraction")
	cmd.Flags().IntVar(&kFolds, "k-folds", 0, "Use k-fold cross-validation when greater than 1")
	cmd.Flags().StringVar(&params, "params", "{}", "Hyperparameters as a JSON object")
	cmd.Flags().StringVar(&seed, "seed", "", "Seed for a reproducible split")
	cmd.Flags().StringVar(&owner, "owner", "", "Owner user id")
	_ = cmd.MarkFlagRequired("data")
	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func listCmd(a *app, jsonOutput *bool) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			caller := domain.Identity{Role: domain.RoleAdmin}
			if owner != "" {
				id, err := parseOwner(owner)
				if err != nil {
					return err
				}
				caller = domain.Identity{ID: id, Role: domain.RoleUser}
			}

			records, err := a.models.List(cmd.Context(), caller)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if *jsonOutput {
				return writeJSON(out, dto.ToListModelsResponse(records))
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "No models saved.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTYPE\tACCURACY\tOWNER\tCREATED")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%.4f\t%s\t%s\n",
					r.Name, r.ModelType, r.Accuracy, r.OwnerID, r.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Only list models owned by this user id")
	return cmd
}

func predictCmd(a *app, jsonOutput *bool) *cobra.Command {
	var (
		name     string
		dataPath string
		proba    bool
	)

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict feature rows from a CSV file with a saved model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			admin := domain.Identity{Role: domain.RoleAdmin}
			model, record, err := a.models.Load(cmd.Context(), admin, name)
			if err != nil {
				return err
			}

			table, err := readTable(dataPath)
			if err != nil {
				return err
			}
			rows, err := table.Features()
			if err != nil {
				return err
			}

			pred, err := a.prediction.Predict(model, record.ModelType.String(), rows, proba)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if *jsonOutput {
				resp := dto.ToPredictResponse(record.Name, record.ModelType, pred)
				resp.RowsPredicted = pred.Len()
				return writeJSON(out, resp)
			}
			for i := 0; i < pred.Len(); i++ {
				if pred.IsProbabilistic() {
					fmt.Fprintf(out, "%d\t%s\n", i, formatScores(pred.Probabilities[i]))
				} else {
					fmt.Fprintf(out, "%d\t%s\n", i, pred.Labels[i])
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Logical model name")
	cmd.Flags().StringVar(&dataPath, "data", "", "CSV file of feature rows with a header row")
	cmd.Flags().BoolVar(&proba, "proba", false, "Print class probabilities instead of labels")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func parseOwner(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid owner id %q: %w", s, err)
	}
	return id, nil
}

func readTable(path string) (*tabular.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return tabular.Read(f)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatScores(scores []float64) string {
	parts := make([]string, len(scores))
	for i, s := range scores {
		parts[i] = strconv.FormatFloat(s, 'f', 4, 64)
	}
	return strings.Join(parts, " ")
}
