// Command scorecsv scores a CSV of patient records against a model
// artifact without going through the HTTP service.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"heartguard/dataset"
	"heartguard/ml"
	"heartguard/predict"
	"heartguard/store"
)

func main() {
	modelPath := flag.String("model", "models/heart_risk_model.json", "path to the model artifact")
	inputPath := flag.String("input", "", "CSV file with patient records")
	outputPath := flag.String("output", "", "where to write the id,prediction CSV (default stdout)")
	flag.Parse()

	if *inputPath == "" {
		log.Fatal("-input is required")
	}

	handle, err := ml.Load(*modelPath)
	if err != nil {
		log.Fatalf("Failed to load model: %v", err)
	}

	input, err := os.Open(*inputPath)
	if err != nil {
		log.Fatalf("Failed to open input: %v", err)
	}
	defer input.Close()

	table, err := dataset.ReadCSV(input)
	if err != nil {
		log.Fatalf("Failed to parse CSV: %v", err)
	}
	if err := dataset.RequireColumns(table, "age", "cholesterol", "heart_rate"); err != nil {
		log.Fatalf("Invalid input: %v", err)
	}

	predictor := predict.NewPredictor(handle)
	results, err := predictor.PredictBatch(table)
	if err != nil {
		log.Fatalf("Prediction failed: %v", err)
	}

	rows := make([]store.Row, len(results))
	for i, result := range results {
		rows[i] = store.Row{ID: fmt.Sprintf("%v", result.ID), Prediction: result.Prediction}
	}
	body := store.RenderCSV(rows)

	if *outputPath == "" {
		os.Stdout.Write(body)
	} else if err := os.WriteFile(*outputPath, body, 0o644); err != nil {
		log.Fatalf("Failed to write output: %v", err)
	}

	summary, err := predict.Summarize(predict.Probabilities(results))
	if err != nil {
		log.Fatalf("Failed to summarize: %v", err)
	}
	fmt.Fprintf(os.Stderr, "rows=%d mean=%.4f min=%.4f max=%.4f std=%.4f risk=%d no_risk=%d\n",
		len(results), summary.Mean, summary.Min, summary.Max, summary.Std,
		summary.RiskCount, summary.NoRiskCount)
}
