// Command test-mcp drives "linkdesk mcp" over stdio and checks the tools answer.
// Build the binary first, then: go run ./scripts/test-mcp.go -bin ./linkdesk
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

type MCPRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id,omitempty"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type MCPResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *MCPError       `json:"error,omitempty"`
}

type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type ToolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

type toolResult struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

func main() {
	binaryPath := flag.String("bin", "./linkdesk", "Path to the linkdesk binary")
	configPath := flag.String("config", "", "Config file passed to linkdesk")
	flag.Parse()

	if _, err := os.Stat(*binaryPath); os.IsNotExist(err) {
		fmt.Printf("Binary not found at %s. Run 'go build ./cmd/linkdesk' first.\n", *binaryPath)
		os.Exit(1)
	}

	args := []string{"mcp"}
	if *configPath != "" {
		args = append(args, "--config", *configPath)
	}

	tester := &MCPTester{}
	if err := tester.RunTests(*binaryPath, args); err != nil {
		fmt.Printf("FAILED: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("All MCP checks passed")
}

type MCPTester struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	reader *bufio.Reader
	nextID int
}

func (t *MCPTester) RunTests(binary string, args []string) error {
	if err := t.startServer(binary, args); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	defer t.cleanup()

	tests := []struct {
		name string
		fn   func() error
	}{
		{"Initialize connection", t.testInitialize},
		{"List tools", t.testListTools},
		{"Search doctypes", t.testSearchLink},
		{"Reject injected search field", t.testInvalidSearchField},
		{"List patch logs", t.testListPatchLogs},
	}

	for _, test := range tests {
		fmt.Printf("%s... ", test.name)
		if err := test.fn(); err != nil {
			fmt.Println("failed")
			return fmt.Errorf("%s: %w", test.name, err)
		}
		fmt.Println("ok")
	}
	return nil
}

func (t *MCPTester) startServer(binary string, args []string) error {
	t.cmd = exec.Command(binary, args...)

	stdin, err := t.cmd.StdinPipe()
	if err != nil {
		return err
	}
	t.stdin = stdin

	stdout, err := t.cmd.StdoutPipe()
	if err != nil {
		return err
	}
	t.reader = bufio.NewReader(stdout)
	t.cmd.Stderr = os.Stderr

	if err := t.cmd.Start(); err != nil {
		return err
	}

	// Patches run before the server starts reading stdin
	time.Sleep(2 * time.Second)
	return nil
}

func (t *MCPTester) cleanup() {
	if t.stdin != nil {
		t.stdin.Close()
	}
	if t.cmd != nil && t.cmd.Process != nil {
		t.cmd.Process.Kill()
		t.cmd.Wait()
	}
}

func (t *MCPTester) write(req MCPRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	_, err = t.stdin.Write(append(body, '\n'))
	return err
}

func (t *MCPTester) call(method string, params interface{}) (json.RawMessage, error) {
	t.nextID++
	if err := t.write(MCPRequest{JSONRPC: "2.0", ID: t.nextID, Method: method, Params: params}); err != nil {
		return nil, err
	}

	lines := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		line, err := t.reader.ReadString('\n')
		if err != nil {
			errs <- err
			return
		}
		lines <- strings.TrimSpace(line)
	}()

	select {
	case line := <-lines:
		var resp MCPResponse
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			return nil, fmt.Errorf("failed to parse response %q: %w", line, err)
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("%s: %s", method, resp.Error.Message)
		}
		return resp.Result, nil
	case err := <-errs:
		return nil, fmt.Errorf("read error: %w", err)
	case <-time.After(10 * time.Second):
		return nil, fmt.Errorf("timeout waiting for %s", method)
	}
}

func (t *MCPTester) callTool(name string, args map[string]interface{}) (map[string]interface{}, bool, error) {
	raw, err := t.call("tools/call", ToolCallParams{Name: name, Arguments: args})
	if err != nil {
		return nil, false, err
	}

	var result toolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, false, err
	}
	if len(result.Content) == 0 {
		return nil, false, fmt.Errorf("no content in %s response", name)
	}

	var body map[string]interface{}
	if err := json.Unmarshal([]byte(result.Content[0].Text), &body); err != nil {
		return nil, false, err
	}
	return body, result.IsError, nil
}

func (t *MCPTester) testInitialize() error {
	_, err := t.call("initialize", map[string]interface{}{
		"protocolVersion": "2024-11-05",
		"capabilities":    map[string]interface{}{},
		"clientInfo":      map[string]interface{}{"name": "test-mcp", "version": "1.0.0"},
	})
	if err != nil {
		return err
	}
	return t.write(MCPRequest{JSONRPC: "2.0", Method: "notifications/initialized", Params: map[string]interface{}{}})
}

func (t *MCPTester) testListTools() error {
	raw, err := t.call("tools/list", map[string]interface{}{})
	if err != nil {
		return err
	}

	var result struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return err
	}

	found := make(map[string]bool)
	for _, tool := range result.Tools {
		found[tool.Name] = true
	}
	for _, expected := range []string{"search_link", "search_widget", "list_patch_logs", "rerun_patch"} {
		if !found[expected] {
			return fmt.Errorf("missing tool: %s", expected)
		}
	}
	return nil
}

func (t *MCPTester) testSearchLink() error {
	body, isError, err := t.callTool("search_link", map[string]interface{}{"doctype": "DocType", "txt": "terr"})
	if err != nil {
		return err
	}
	if isError || body["success"] != true {
		return fmt.Errorf("search failed: %v", body["error"])
	}
	if !strings.Contains(fmt.Sprint(body["data"]), "Territory") {
		return fmt.Errorf("Territory not among %v", body["data"])
	}
	return nil
}

func (t *MCPTester) testInvalidSearchField() error {
	body, isError, err := t.callTool("search_link", map[string]interface{}{"doctype": "DocType", "searchfield": "name or 1=1"})
	if err != nil {
		return err
	}
	if !isError || body["exc_type"] != "DataError" {
		return fmt.Errorf("expected a DataError, got %v", body)
	}
	return nil
}

func (t *MCPTester) testListPatchLogs() error {
	body, isError, err := t.callTool("list_patch_logs", map[string]interface{}{})
	if err != nil {
		return err
	}
	if isError || body["success"] != true {
		return fmt.Errorf("listing failed: %v", body["error"])
	}
	return nil
}
