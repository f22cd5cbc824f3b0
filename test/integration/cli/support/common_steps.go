package support

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/cucumber/godog"
)

// RegisterCommonSteps wires the command execution and assertion steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the environment variable "([^"]*)" is set to "([^"]*)"$`, testCtx.theEnvironmentVariableIsSet)
}

// substitute expands ${TEMP_DIR} in command text to the scenario temp dir.
func (testCtx *TestContext) substitute(text string) string {
	return strings.ReplaceAll(text, "${TEMP_DIR}", testCtx.TempDir)
}

// iRunCommand executes the leafstitch binary with the given arguments.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substitute(command)
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return fmt.Errorf("empty command")
	}
	if parts[0] != "leafstitch" {
		return fmt.Errorf("unexpected command %q, integration steps only run leafstitch", parts[0])
	}

	binPath := os.Getenv("LEAFSTITCH_TEST_BIN")
	if binPath == "" {
		binPath = filepath.Join(testCtx.WorkingDir, "bin", "leafstitch")
	}

	cmd := exec.Command(binPath, parts[1:]...) //nolint:gosec // G204: Test command with controlled arguments
	cmd.Dir = testCtx.TempDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)

	start := time.Now()
	output, err := cmd.CombinedOutput()
	testCtx.LastDuration = time.Since(start)

	testCtx.LastCommand = command
	testCtx.LastOutput = string(output)
	testCtx.LastError = err
	testCtx.LastExitCode = cmd.ProcessState.ExitCode()
	return nil
}

func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastError != nil {
		return fmt.Errorf("command %q failed with exit code %d: %v\noutput:\n%s",
			testCtx.LastCommand, testCtx.LastExitCode, testCtx.LastError, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastError == nil {
		return fmt.Errorf("command %q succeeded but was expected to fail\noutput:\n%s",
			testCtx.LastCommand, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldContain(expected string) error {
	expected = testCtx.substitute(expected)
	if !strings.Contains(testCtx.LastOutput, expected) {
		return fmt.Errorf("output does not contain %q:\n%s", expected, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldNotContain(unexpected string) error {
	unexpected = testCtx.substitute(unexpected)
	if strings.Contains(testCtx.LastOutput, unexpected) {
		return fmt.Errorf("output unexpectedly contains %q:\n%s", unexpected, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldExist(path string) error {
	path = testCtx.substitute(path)
	if !filepath.IsAbs(path) {
		path = filepath.Join(testCtx.TempDir, path)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("expected file %s to exist: %w", path, err)
	}
	return nil
}

func (testCtx *TestContext) theEnvironmentVariableIsSet(name, value string) error {
	testCtx.AddEnvVar(name, testCtx.substitute(value))
	return nil
}
