package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureOutput(f func()) string {
	var buf bytes.Buffer
	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	done := make(chan bool)
	go func() {
		_, _ = io.Copy(&buf, r)
		done <- true
	}()

	f()
	_ = w.Close()
	os.Stdout = oldStdout
	<-done

	return buf.String()
}

func callMain() (int, string) {
	var exitCode int
	oldExit := exit
	defer func() { exit = oldExit }()
	exit = func(code int) {
		exitCode = code
		panic("exit")
	}

	// Capture output
	var buf bytes.Buffer
	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	// Run main in a goroutine
	done := make(chan bool)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				if r != "exit" {
					panic(r)
				}
			}
			done <- true
		}()
		RealMain()
	}()

	// Copy output in another goroutine
	outputDone := make(chan bool)
	go func() {
		_, _ = io.Copy(&buf, r)
		outputDone <- true
	}()

	// Wait for main to finish
	<-done
	w.Close()
	os.Stdout = oldStdout
	<-outputDone

	return exitCode, buf.String()
}

func TestRealMain(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()
	t.Setenv("DBLOG_DB_PATH", filepath.Join(t.TempDir(), "badger"))
	t.Setenv("DBLOG_KEY_FILE", filepath.Join(t.TempDir(), "wallet.json"))

	tests := []struct {
		name           string
		args           []string
		env            map[string]string
		expectedExit   int
		expectedOutput string
	}{
		{
			name:           "no arguments",
			args:           []string{"dblog"},
			expectedExit:   1,
			expectedOutput: "Usage: dblog <command>",
		},
		{
			name:           "help command",
			args:           []string{"dblog", "help"},
			expectedExit:   0,
			expectedOutput: "Usage: dblog <command> [options]",
		},
		{
			name:           "version command",
			args:           []string{"dblog", "version"},
			expectedExit:   0,
			expectedOutput: "dblog version " + CliVersion,
		},
		{
			name:           "unknown command",
			args:           []string{"dblog", "unknown"},
			expectedExit:   1,
			expectedOutput: "Unknown command: unknown",
		},
		{
			name:           "db help",
			args:           []string{"dblog", "db", "help"},
			expectedExit:   0,
			expectedOutput: "Usage: dblog db <command>",
		},
		{
			name:           "db init",
			args:           []string{"dblog", "db", "init"},
			expectedExit:   0,
			expectedOutput: `Database initialized successfully for "My dBlog"`,
		},
		{
			name:           "keygen with bad prefix",
			args:           []string{"dblog", "keygen", "--prefix", "zz"},
			expectedExit:   1,
			expectedOutput: "not hexadecimal",
		},
		{
			name:           "unknown profile",
			args:           []string{"dblog", "index"},
			env:            map[string]string{"DBLOG_ENV": "staging"},
			expectedExit:   1,
			expectedOutput: "Failed to load configuration",
		},
		{
			name:         "index without database",
			args:         []string{"dblog", "index"},
			expectedExit: 1,
		},
		{
			name:           "invalid configuration",
			args:           []string{"dblog", "serve"},
			env:            map[string]string{"DBLOG_LISTEN_ADDR": "not an address"},
			expectedExit:   1,
			expectedOutput: "Failed to load configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			os.Args = tt.args

			exitCode, output := callMain()

			assert.Contains(t, output, tt.expectedOutput)
			assert.Equal(t, tt.expectedExit, exitCode)
		})
	}
}

func TestPrintHelp(t *testing.T) {
	output := captureOutput(func() {
		printHelp()
	})

	assert.Contains(t, output, "Usage: dblog")
	for _, cmd := range []string{"help", "version", "keygen", "serve", "index", "post", "db"} {
		assert.Contains(t, output, cmd)
	}
	assert.Contains(t, output, "--prefix <hex>")
	assert.Contains(t, output, "init, clean, backup, restore")
}
