package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/osvaldoandrade/agentq/internal/backoff"
)

type client struct {
	baseURL    string
	httpClient *http.Client
}

type jobResp struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Request string `json:"request"`
	Error   string `json:"error,omitempty"`
}

type agentBrief struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	Steps int    `json:"steps"`
}

type planPayload struct {
	Agents []agentBrief `json:"agents"`
}

type agentStartPayload struct {
	Agent agentBrief `json:"agent"`
}

type agentProgressPayload struct {
	ID       string `json:"id"`
	Progress int    `json:"progress"`
	Log      string `json:"log"`
}

type agentCompletePayload struct {
	ID     string `json:"id"`
	Output string `json:"output"`
}

type jobCompletePayload struct {
	JobID  string `json:"jobId"`
	Result struct {
		Title     string `json:"title"`
		Summary   string `json:"summary"`
		Artifacts []struct {
			Type  string `json:"type"`
			Title string `json:"title"`
			Ref   string `json:"ref,omitempty"`
		} `json:"artifacts"`
	} `json:"result"`
}

type jobErrorPayload struct {
	Message string `json:"message"`
	AgentID string `json:"agentId,omitempty"`
}

type ui struct {
	title func(a ...any) string
	ok    func(a ...any) string
	info  func(a ...any) string
	warn  func(a ...any) string
	err   func(a ...any) string
	dim   func(a ...any) string
}

type profile struct {
	BaseURL     string  `yaml:"baseUrl"`
	FailureRate float64 `yaml:"failureRate"`
}

type cliConfig struct {
	CurrentProfile string             `yaml:"currentProfile"`
	Profiles       map[string]profile `yaml:"profiles"`
}

func newUI() *ui {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		color.NoColor = true
	}
	return &ui{
		title: color.New(color.FgHiCyan, color.Bold).SprintFunc(),
		ok:    color.New(color.FgGreen, color.Bold).SprintFunc(),
		info:  color.New(color.FgCyan).SprintFunc(),
		warn:  color.New(color.FgYellow).SprintFunc(),
		err:   color.New(color.FgRed, color.Bold).SprintFunc(),
		dim:   color.New(color.FgHiBlack).SprintFunc(),
	}
}

func (c *client) request(method, path string, body any) (int, []byte, error) {
	var buf *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		buf = bytes.NewReader(b)
	} else {
		buf = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, c.baseURL+path, buf)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, nil
}

func main() {
	baseURL := getenv("AGENTQ_BASE_URL", "http://localhost:8080")
	profileName := getenv("AGENTQ_PROFILE", "")
	ui := newUI()

	root := &cobra.Command{
		Use:   "agentq",
		Short: "agentQ CLI",
		Long:  "agentQ CLI for submitting jobs and watching agent pipelines.",
	}
	root.SetHelpTemplate(helpTemplate(ui))
	root.SilenceUsage = true

	root.PersistentFlags().StringVar(&baseURL, "base-url", baseURL, "Base URL for agentQ")
	root.PersistentFlags().StringVar(&profileName, "profile", profileName, "Config profile")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, _, _ := loadConfig()
		active := resolveProfileName(profileName, cfg)
		prof := cfg.Profiles[active]

		if !cmd.Flags().Changed("base-url") {
			if v := strings.TrimSpace(os.Getenv("AGENTQ_BASE_URL")); v != "" {
				baseURL = v
			} else if prof.BaseURL != "" {
				baseURL = prof.BaseURL
			}
		}
		if !cmd.Flags().Changed("profile") && profileName == "" && active != "" {
			profileName = active
		}
		return nil
	}

	root.AddCommand(initCmd(&profileName, ui))
	root.AddCommand(jobCmd(&baseURL, ui))
	root.AddCommand(runCmd(&baseURL, &profileName, ui))
	root.AddCommand(watchCmd(&baseURL, ui))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.err("[ERROR]"), err.Error())
		os.Exit(1)
	}
}

func initCmd(profileName *string, ui *ui) *cobra.Command {
	var (
		baseURL     string
		failureRate float64
		noPrompt    bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize CLI config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cfgPath, err := loadConfig()
			if err != nil {
				return err
			}
			active := resolveProfileName(*profileName, cfg)
			prof := cfg.Profiles[active]

			if baseURL == "" {
				baseURL = prof.BaseURL
			}
			if baseURL == "" {
				baseURL = "http://localhost:8080"
			}

			if !noPrompt {
				reader := bufio.NewReader(os.Stdin)
				baseURL = prompt(reader, "Base URL", baseURL)
			}

			prof.BaseURL = strings.TrimSpace(baseURL)
			if cmd.Flags().Changed("failure-rate") {
				prof.FailureRate = failureRate
			}

			if cfg.Profiles == nil {
				cfg.Profiles = map[string]profile{}
			}
			cfg.Profiles[active] = prof
			if cfg.CurrentProfile == "" || *profileName != "" {
				cfg.CurrentProfile = active
			}

			if err := saveConfig(cfg, cfgPath); err != nil {
				return err
			}
			fmt.Printf("%s Initialized profile '%s' at %s\n", ui.ok("[OK]"), active, cfgPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Base URL for agentQ")
	cmd.Flags().Float64Var(&failureRate, "failure-rate", 0, "Default per-step failure probability")
	cmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "Disable interactive prompts")
	return cmd
}

func jobCmd(baseURL *string, ui *ui) *cobra.Command {
	job := &cobra.Command{
		Use:   "job",
		Short: "Job operations",
	}

	var request string

	submit := &cobra.Command{
		Use:     "submit",
		Short:   "Submit a job without attaching to its stream",
		Example: "agentq job submit --request 'Summarize quarterly revenue trends'",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(request) == "" {
				return errors.New("request is required")
			}
			c := newClient(*baseURL)
			spin := spinner.New(spinner.CharSets[14], 120*time.Millisecond)
			spin.Suffix = " Submitting job..."
			spin.Start()
			status, resp, err := c.request("POST", "/v1/agentq/jobs", map[string]string{"request": request})
			spin.Stop()
			if err != nil {
				return err
			}
			if status >= 300 {
				return fmt.Errorf("error (%d): %s", status, string(resp))
			}
			var out struct {
				JobID string `json:"jobId"`
			}
			if err := json.Unmarshal(resp, &out); err != nil {
				fmt.Println(string(resp))
				return nil
			}
			fmt.Printf("%s Job accepted: %s\n", ui.ok("[OK]"), out.JobID)
			fmt.Printf("%s Execution starts when the stream is opened: agentq watch %s\n", ui.dim("[HINT]"), out.JobID)
			return nil
		},
	}
	submit.Flags().StringVar(&request, "request", "", "Natural-language request")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Get a job record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*baseURL)
			spin := spinner.New(spinner.CharSets[14], 120*time.Millisecond)
			spin.Suffix = " Fetching job..."
			spin.Start()
			status, resp, err := c.request("GET", "/v1/agentq/jobs/"+url.PathEscape(args[0]), nil)
			spin.Stop()
			if err != nil {
				return err
			}
			if status >= 300 {
				return fmt.Errorf("error (%d): %s", status, string(resp))
			}
			var out jobResp
			if err := json.Unmarshal(resp, &out); err != nil {
				fmt.Println(string(resp))
				return nil
			}
			badge := ui.info(out.Status)
			switch out.Status {
			case "COMPLETED":
				badge = ui.ok(out.Status)
			case "ERROR":
				badge = ui.err(out.Status)
			}
			fmt.Printf("%s %s %s\n", badge, out.ID, ui.dim(out.Request))
			if out.Error != "" {
				fmt.Printf("%s %s\n", ui.err("[ERROR]"), out.Error)
			}
			return nil
		},
	}

	result := &cobra.Command{
		Use:   "result <id>",
		Short: "Get a completed job result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*baseURL)
			spin := spinner.New(spinner.CharSets[14], 120*time.Millisecond)
			spin.Suffix = " Fetching result..."
			spin.Start()
			status, resp, err := c.request("GET", "/v1/agentq/jobs/"+url.PathEscape(args[0])+"/result", nil)
			spin.Stop()
			if err != nil {
				return err
			}
			if status >= 300 {
				return fmt.Errorf("error (%d): %s", status, string(resp))
			}
			fmt.Println(string(resp))
			return nil
		},
	}

	job.AddCommand(submit, get, result)
	return job
}

func runCmd(baseURL *string, profileName *string, ui *ui) *cobra.Command {
	var failureRate float64

	cmd := &cobra.Command{
		Use:     "run <request>",
		Short:   "Submit a job and stream its execution",
		Example: "agentq run 'Draft an API integration plan' --failure-rate 0.05",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			request := strings.TrimSpace(args[0])
			if request == "" {
				return errors.New("request is required")
			}
			if !cmd.Flags().Changed("failure-rate") {
				cfg, _, _ := loadConfig()
				prof := cfg.Profiles[resolveProfileName(*profileName, cfg)]
				if prof.FailureRate > 0 {
					failureRate = prof.FailureRate
				}
			}

			c := newClient(*baseURL)
			status, resp, err := c.request("POST", "/v1/agentq/jobs", map[string]string{"request": request})
			if err != nil {
				return err
			}
			if status >= 300 {
				return fmt.Errorf("error (%d): %s", status, string(resp))
			}
			var out struct {
				JobID string `json:"jobId"`
			}
			if err := json.Unmarshal(resp, &out); err != nil {
				return fmt.Errorf("unexpected response: %s", string(resp))
			}
			fmt.Printf("%s Job %s\n", ui.title("agentq"), out.JobID)
			return streamJob(c, out.JobID, failureRate, cmd.Flags().Changed("failure-rate"), ui)
		},
	}
	cmd.Flags().Float64Var(&failureRate, "failure-rate", 0, "Per-step failure probability (0..1)")
	return cmd
}

func watchCmd(baseURL *string, ui *ui) *cobra.Command {
	var failureRate float64

	cmd := &cobra.Command{
		Use:     "watch <id>",
		Short:   "Attach to a job stream (starts or replays the job)",
		Example: "agentq watch 5f6d2c1e-... --failure-rate 0.1",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*baseURL)
			return streamJob(c, args[0], failureRate, cmd.Flags().Changed("failure-rate"), ui)
		},
	}
	cmd.Flags().Float64Var(&failureRate, "failure-rate", 0, "Per-step failure probability (0..1)")
	return cmd
}

// streamJob opens the SSE channel and renders events until the stream closes.
// Connection errors retry with jittered backoff; HTTP errors are final.
func streamJob(c *client, jobID string, failureRate float64, withRate bool, ui *ui) error {
	streamURL := c.baseURL + "/v1/agentq/jobs/" + url.PathEscape(jobID) + "/stream"
	if withRate {
		q := url.Values{}
		q.Set("failureRate", fmt.Sprintf("%g", failureRate))
		streamURL += "?" + q.Encode()
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var resp *http.Response
	for attempt := 1; ; attempt++ {
		spin := spinner.New(spinner.CharSets[14], 120*time.Millisecond)
		spin.Suffix = " Connecting..."
		spin.Start()
		r, err := c.httpClient.Get(streamURL)
		spin.Stop()
		if err == nil {
			resp = r
			break
		}
		if attempt >= 5 {
			return fmt.Errorf("connect: %w", err)
		}
		delay := backoff.Delay("exp_full_jitter", 500*time.Millisecond, 10*time.Second, attempt, rng)
		fmt.Printf("%s Connection failed, retrying in %s\n", ui.warn("[WARN]"), delay.Round(time.Millisecond))
		time.Sleep(delay)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		out, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("error (%d): %s", resp.StatusCode, string(out))
	}

	interactive := term.IsTerminal(int(os.Stdout.Fd()))
	renderer := &streamRenderer{ui: ui, interactive: interactive}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var name string
	var data []byte
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if name != "" {
				renderer.handle(name, data)
				name, data = "", nil
			}
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = []byte(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if name != "" {
		renderer.handle(name, data)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream interrupted: %w", err)
	}
	if renderer.failed {
		return errors.New("job failed")
	}
	return nil
}

type streamRenderer struct {
	ui          *ui
	interactive bool
	agents      map[string]agentBrief
	bar         *progressbar.ProgressBar
	failed      bool
}

func (r *streamRenderer) handle(name string, data []byte) {
	switch name {
	case "job-start":
		fmt.Printf("%s Pipeline started\n", r.ui.info("[INFO]"))
	case "plan":
		var p planPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		r.agents = make(map[string]agentBrief, len(p.Agents))
		fmt.Printf("%s Plan: %d agents\n", r.ui.info("[INFO]"), len(p.Agents))
		for i, a := range p.Agents {
			r.agents[a.ID] = a
			fmt.Printf("  %d. %s %s\n", i+1, a.Name, r.ui.dim("("+a.Role+", "+fmt.Sprint(a.Steps)+" steps)"))
		}
	case "agent-start":
		var p agentStartPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		if r.interactive {
			r.bar = progressbar.NewOptions(100,
				progressbar.OptionSetDescription(p.Agent.Name),
				progressbar.OptionSetWidth(24),
				progressbar.OptionClearOnFinish(),
			)
		} else {
			fmt.Printf("%s %s started\n", r.ui.info("[INFO]"), p.Agent.Name)
		}
	case "agent-progress":
		var p agentProgressPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		if r.bar != nil {
			_ = r.bar.Set(p.Progress)
		} else {
			fmt.Printf("%s %s (%d%%)\n", r.ui.dim("  ..."), p.Log, p.Progress)
		}
	case "agent-complete":
		var p agentCompletePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		if r.bar != nil {
			_ = r.bar.Finish()
			r.bar = nil
		}
		name := p.ID
		if a, ok := r.agents[p.ID]; ok {
			name = a.Name
		}
		fmt.Printf("%s %s: %s\n", r.ui.ok("[DONE]"), name, p.Output)
	case "job-complete":
		var p jobCompletePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		fmt.Printf("\n%s %s\n", r.ui.title(p.Result.Title), r.ui.ok("COMPLETED"))
		for _, line := range strings.Split(p.Result.Summary, "\n") {
			fmt.Printf("  %s\n", line)
		}
		for _, a := range p.Result.Artifacts {
			ref := a.Ref
			if ref == "" {
				ref = "(inline)"
			}
			fmt.Printf("%s %s: %s %s\n", r.ui.info("[ARTIFACT]"), a.Type, a.Title, r.ui.dim(ref))
		}
	case "job-error":
		var p jobErrorPayload
		_ = json.Unmarshal(data, &p)
		if r.bar != nil {
			_ = r.bar.Finish()
			r.bar = nil
		}
		r.failed = true
		if p.AgentID != "" {
			fmt.Printf("%s %s (agent %s)\n", r.ui.err("[FAILED]"), p.Message, p.AgentID)
		} else {
			fmt.Printf("%s %s\n", r.ui.err("[FAILED]"), p.Message)
		}
	}
}

func newClient(baseURL string) *client {
	return &client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func helpTemplate(ui *ui) string {
	title := ui.title("agentq")
	return fmt.Sprintf(`%s — CLI for agentQ

Usage:
  {{.UseLine}}

Commands:
{{range .Commands}}{{if (or .IsAvailableCommand .IsAdditionalHelpTopicCommand)}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

Flags:
  {{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

Global Flags:
  {{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

Config:
  %s

Examples:
  agentq init
  agentq run 'Summarize last three quarters financial trends'
  agentq job submit --request 'Draft API integration plan'
  agentq watch <job-id> --failure-rate 0.1
  agentq job result <job-id>

`, title, configPath())
}

func configPath() string {
	if v := strings.TrimSpace(os.Getenv("AGENTQ_CONFIG_DIR")); v != "" {
		return filepath.Join(v, "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".agentq", "config.yaml")
}

func loadConfig() (cliConfig, string, error) {
	path := configPath()
	var cfg cliConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cliConfig{Profiles: map[string]profile{}}, path, nil
		}
		return cfg, path, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, path, err
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]profile{}
	}
	return cfg, path, nil
}

func saveConfig(cfg cliConfig, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func resolveProfileName(flag string, cfg cliConfig) string {
	if strings.TrimSpace(flag) != "" {
		return strings.TrimSpace(flag)
	}
	if v := strings.TrimSpace(os.Getenv("AGENTQ_PROFILE")); v != "" {
		return v
	}
	if cfg.CurrentProfile != "" {
		return cfg.CurrentProfile
	}
	return "default"
}

func prompt(r *bufio.Reader, label, def string) string {
	if def != "" {
		fmt.Printf("%s [%s]: ", label, def)
	} else {
		fmt.Printf("%s: ", label)
	}
	line, _ := r.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return def
	}
	return line
}
