package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/meenmo/basecorr/basecorr"
	"github.com/meenmo/basecorr/config"
	"github.com/meenmo/basecorr/logger"
)

func main() {
	inputPath := flag.String("input", "", "JSON input path (reads stdin if omitted)")
	help := flag.Bool("h", false, "Show help")
	flag.BoolVar(help, "help", false, "Show help")
	flag.Parse()

	if *help {
		fmt.Fprintln(os.Stderr, "Usage: basecorr -input <path>")
		fmt.Fprintln(os.Stderr, "Calibrate base correlation term structures from tranche quotes.")
		return
	}

	path := strings.TrimSpace(*inputPath)
	if path == "" {
		if stat, err := os.Stdin.Stat(); err == nil && (stat.Mode()&os.ModeCharDevice) != 0 {
			fmt.Fprintln(os.Stderr, "Usage: basecorr -input <path>")
			os.Exit(2)
		}
	}

	env, err := config.LoadEnv()
	if err != nil {
		exitError(fmt.Sprintf("load env: %v", err))
	}
	log := logger.New(logger.Config{Level: env.LogLevel, Pretty: env.LogPretty})

	raw, err := readInput(path)
	if err != nil {
		exitError(fmt.Sprintf("read input: %v", err))
	}

	inputs, isArray, err := parseInputs(raw)
	if err != nil {
		exitError(fmt.Sprintf("parse JSON: %v", err))
	}

	ctx := context.Background()
	hadError := false
	outputs := make([]calibrationOutput, 0, len(inputs))
	for _, in := range inputs {
		out, err := process(ctx, in, env.Calibration, log)
		if err != nil {
			hadError = true
			log.Error().Err(err).Str("task_id", in.TaskID).Msg("Calibration request failed")
			outputs = append(outputs, calibrationOutput{TaskID: in.TaskID, Error: err.Error()})
			continue
		}
		outputs = append(outputs, *out)
	}

	if isArray {
		b, _ := json.Marshal(outputs)
		fmt.Println(string(b))
	} else {
		b, _ := json.Marshal(outputs[0])
		fmt.Println(string(b))
	}

	if hadError {
		os.Exit(1)
	}
}

func process(ctx context.Context, in calibrationInput, cfg config.Config, log zerolog.Logger) (*calibrationOutput, error) {
	req, err := in.build(cfg)
	if err != nil {
		return nil, err
	}
	cal, err := basecorr.NewCalibrator(req.opts, log.With().Str("task_id", in.TaskID).Logger())
	if err != nil {
		return nil, err
	}
	ts, err := cal.CalibrateTermStructure(ctx, req.tenors)
	if err != nil {
		return nil, err
	}
	return report(in, req, ts)
}

func readInput(path string) ([]byte, error) {
	if path != "" {
		return os.ReadFile(path)
	}
	return io.ReadAll(os.Stdin)
}

func parseInputs(raw []byte) ([]calibrationInput, bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, false, fmt.Errorf("empty input")
	}
	if trimmed[0] == '[' {
		var inputs []calibrationInput
		if err := json.Unmarshal(trimmed, &inputs); err != nil {
			return nil, true, err
		}
		if len(inputs) == 0 {
			return nil, true, fmt.Errorf("empty input array")
		}
		return inputs, true, nil
	}
	var input calibrationInput
	if err := json.Unmarshal(trimmed, &input); err != nil {
		return nil, false, err
	}
	return []calibrationInput{input}, false, nil
}

func exitError(msg string) {
	b, _ := json.Marshal(calibrationOutput{Error: msg})
	fmt.Println(string(b))
	os.Exit(1)
}
