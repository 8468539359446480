package support

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/sticker/cmd/sticker/cmd"
)

// splitCommand splits a command line on spaces. Single quotes group words.
func splitCommand(command string) ([]string, error) {
	var (
		parts   []string
		current strings.Builder
		quoted  bool
		started bool
	)
	for _, r := range command {
		switch {
		case r == '\'':
			quoted = !quoted
			started = true
		case r == ' ' && !quoted:
			if started {
				parts = append(parts, current.String())
				current.Reset()
				started = false
			}
		default:
			current.WriteRune(r)
			started = true
		}
	}
	if quoted {
		return nil, fmt.Errorf("unterminated quote in %q", command)
	}
	if started {
		parts = append(parts, current.String())
	}
	return parts, nil
}

// iRunCommand executes a sticker command line in-process and stores the
// result. The leading "sticker" is optional.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substituteCommandVariables(command)
	testCtx.LastCommand = command
	testCtx.LastStartTime = time.Now()

	args, err := splitCommand(command)
	if err != nil {
		return err
	}
	if len(args) > 0 && args[0] == "sticker" {
		args = args[1:]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	root := cmd.NewRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err = root.ExecuteContext(ctx)

	testCtx.LastOutput = stdout.String()
	testCtx.LastStderr = stderr.String()
	testCtx.LastError = err
	testCtx.LastDuration = time.Since(testCtx.LastStartTime)
	testCtx.LastExitCode = 0
	if err != nil {
		testCtx.LastExitCode = 1
	}
	return nil
}

// theCommandShouldSucceed verifies the command succeeded.
func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d: %w\nOutput: %s\nStderr: %s",
			testCtx.LastExitCode, testCtx.LastError, testCtx.LastOutput, testCtx.LastStderr)
	}
	return nil
}

// theCommandShouldFail verifies the command failed.
func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldContain verifies stdout contains text.
func (testCtx *TestContext) theOutputShouldContain(expectedText string) error {
	expectedText = testCtx.substituteCommandVariables(expectedText)
	if !strings.Contains(testCtx.LastOutput, expectedText) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expectedText, testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldNotContain verifies stdout lacks text.
func (testCtx *TestContext) theOutputShouldNotContain(text string) error {
	if strings.Contains(testCtx.LastOutput, text) {
		return fmt.Errorf("output unexpectedly contains '%s'\nActual output: %s", text, testCtx.LastOutput)
	}
	return nil
}

// theStderrShouldContain verifies stderr contains text.
func (testCtx *TestContext) theStderrShouldContain(expectedText string) error {
	expectedText = testCtx.substituteCommandVariables(expectedText)
	if !strings.Contains(testCtx.LastStderr, expectedText) {
		return fmt.Errorf("stderr does not contain '%s'\nActual stderr: %s", expectedText, testCtx.LastStderr)
	}
	return nil
}

// theErrorShouldMention verifies the command error mentions text.
func (testCtx *TestContext) theErrorShouldMention(text string) error {
	if testCtx.LastError == nil {
		return errors.New("expected an error but the command succeeded")
	}
	if !strings.Contains(strings.ToLower(testCtx.LastError.Error()), strings.ToLower(text)) {
		return fmt.Errorf("error does not mention '%s': %v", text, testCtx.LastError)
	}
	return nil
}

// theOutputShouldBeValidJSON verifies stdout is one JSON document.
func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	var js json.RawMessage
	if err := json.Unmarshal([]byte(testCtx.LastOutput), &js); err != nil {
		return fmt.Errorf("output is not valid JSON: %w\nOutput: %s", err, testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldBeValidCSVWithRows verifies stdout is CSV with a header
// and n data rows.
func (testCtx *TestContext) theOutputShouldBeValidCSVWithRows(n int) error {
	records, err := csv.NewReader(strings.NewReader(testCtx.LastOutput)).ReadAll()
	if err != nil {
		return fmt.Errorf("output is not valid CSV: %w", err)
	}
	if len(records) != n+1 {
		return fmt.Errorf("expected %d CSV rows plus header, got %d", n, len(records)-1)
	}
	return nil
}

// jsonValue walks a dotted path (object keys and array indexes) through
// the JSON output.
func jsonValue(data []byte, path string) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	for _, key := range strings.Split(path, ".") {
		switch node := v.(type) {
		case map[string]any:
			next, ok := node[key]
			if !ok {
				return nil, fmt.Errorf("field %q not found in path %q", key, path)
			}
			v = next
		case []any:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("invalid index %q in path %q", key, path)
			}
			v = node[i]
		default:
			return nil, fmt.Errorf("cannot descend into %q in path %q", key, path)
		}
	}
	return v, nil
}

// theJSONFieldShouldBe compares a JSON field with its textual form.
func theJSONFieldShouldBe(data []byte, path, expected string) error {
	v, err := jsonValue(data, path)
	if err != nil {
		return err
	}
	var actual string
	switch x := v.(type) {
	case string:
		actual = x
	case float64:
		actual = strconv.FormatFloat(x, 'f', -1, 64)
	default:
		actual = fmt.Sprint(x)
	}
	if actual != expected {
		return fmt.Errorf("JSON field %s = %q, expected %q", path, actual, expected)
	}
	return nil
}

// theJSONFieldShouldBePositive checks a numeric JSON field is > 0.
func theJSONFieldShouldBePositive(data []byte, path string) error {
	v, err := jsonValue(data, path)
	if err != nil {
		return err
	}
	f, ok := v.(float64)
	if !ok || f <= 0 {
		return fmt.Errorf("JSON field %s = %v, expected a positive number", path, v)
	}
	return nil
}

// theJSONArrayShouldHaveLength checks the length of a JSON array.
func theJSONArrayShouldHaveLength(data []byte, path string, n int) error {
	var v any
	if path == "" || path == "." {
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("invalid JSON: %w", err)
		}
	} else {
		var err error
		if v, err = jsonValue(data, path); err != nil {
			return err
		}
	}
	arr, ok := v.([]any)
	if !ok {
		return fmt.Errorf("JSON value at %q is not an array", path)
	}
	if len(arr) != n {
		return fmt.Errorf("JSON array %q has %d elements, expected %d", path, len(arr), n)
	}
	return nil
}

// theFileShouldExist verifies that a file exists.
func (testCtx *TestContext) theFileShouldExist(name string) error {
	path := testCtx.Path(testCtx.substituteCommandVariables(name))
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("file %s does not exist: %w", path, err)
	}
	return nil
}

// theFileShouldNotExist verifies that a file is absent.
func (testCtx *TestContext) theFileShouldNotExist(name string) error {
	path := testCtx.Path(testCtx.substituteCommandVariables(name))
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("file %s exists but should not", path)
	}
	return nil
}

// theFileShouldContain verifies a file contains text.
func (testCtx *TestContext) theFileShouldContain(name, text string) error {
	data, err := os.ReadFile(testCtx.Path(name))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if !strings.Contains(string(data), text) {
		return fmt.Errorf("file %s does not contain '%s'", name, text)
	}
	return nil
}

// aConfigFileWith writes a configuration file into the temp directory.
func (testCtx *TestContext) aConfigFileWith(name string, content *godog.DocString) error {
	return os.WriteFile(testCtx.Path(name), []byte(content.Content), 0o600)
}

// RegisterCommonSteps registers command execution and output steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)

	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^stderr should contain "([^"]*)"$`, testCtx.theStderrShouldContain)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the output should be valid CSV with (\d+) rows?$`, testCtx.theOutputShouldBeValidCSVWithRows)
	sc.Step(`^the JSON field "([^"]*)" should be "([^"]*)"$`, func(path, expected string) error {
		return theJSONFieldShouldBe([]byte(testCtx.LastOutput), path, expected)
	})
	sc.Step(`^the JSON field "([^"]*)" should be positive$`, func(path string) error {
		return theJSONFieldShouldBePositive([]byte(testCtx.LastOutput), path)
	})
	sc.Step(`^the JSON array "([^"]*)" should have (\d+) elements?$`, func(path string, n int) error {
		return theJSONArrayShouldHaveLength([]byte(testCtx.LastOutput), path, n)
	})

	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should not exist$`, testCtx.theFileShouldNotExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
	sc.Step(`^a config file "([^"]*)" with:$`, testCtx.aConfigFileWith)
	sc.Step(`^the environment variable "([^"]*)" is set to "([^"]*)"$`, testCtx.SetEnvVar)
}
