// Command audit submits a UX audit to a running SiteLens API server and
// polls it to completion, printing a colored summary.
package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"

	"github.com/sitelens/sitelens/internal/domain"
	"github.com/sitelens/sitelens/pkg/httputil"
)

var (
	green  = color.New(color.FgGreen, color.Bold)
	red    = color.New(color.FgRed, color.Bold)
	yellow = color.New(color.FgYellow, color.Bold)
	cyan   = color.New(color.FgCyan, color.Bold)
	bold   = color.New(color.Bold)
	dim    = color.New(color.Faint)
)

func main() {
	godotenv.Load()

	targetURL := flag.String("url", "", "URL to audit")
	imagePath := flag.String("image", "", "Screenshot file to audit instead of a URL")
	server := flag.String("server", envOr("SITELENS_SERVER", "http://localhost:8080"), "SiteLens API server")
	timeout := flag.Duration("timeout", 6*time.Minute, "How long to wait for the audit to complete")
	asJSON := flag.Bool("json", false, "Print the full report as JSON instead of a summary")

	flag.Parse()

	if (*targetURL == "") == (*imagePath == "") {
		red.Println("provide exactly one of -url or -image")
		flag.Usage()
		os.Exit(1)
	}

	accepted, err := submit(*server, *targetURL, *imagePath)
	if err != nil {
		red.Printf("audit rejected: %v\n", err)
		os.Exit(1)
	}

	cyan.Printf("audit %s accepted\n", accepted.ID)

	report, err := poll(*server, accepted.ID, *timeout)
	if err != nil {
		red.Printf("polling failed: %v\n", err)
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(report)
		return
	}

	printSummary(report)
}

type acceptedResponse struct {
	ID string `json:"id"`
}

func submit(server, targetURL, imagePath string) (*acceptedResponse, error) {
	body := map[string]string{}
	if targetURL != "" {
		body["url"] = targetURL
	} else {
		data, err := os.ReadFile(imagePath)
		if err != nil {
			return nil, err
		}
		body["image_base64"] = base64.StdEncoding.EncodeToString(data)
	}

	payload, _ := json.Marshal(body)
	resp, err := http.Post(server+"/api/v1/audits", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *httputil.Error `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, err
	}
	if !envelope.Success {
		if envelope.Error != nil {
			if envelope.Error.Hint != "" {
				return nil, fmt.Errorf("%s (%s)", envelope.Error.Message, envelope.Error.Hint)
			}
			return nil, fmt.Errorf("%s", envelope.Error.Message)
		}
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	var accepted acceptedResponse
	if err := json.Unmarshal(envelope.Data, &accepted); err != nil {
		return nil, err
	}
	return &accepted, nil
}

func poll(server, id string, timeout time.Duration) (*domain.AuditReport, error) {
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription("   Auditing..."),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		var status domain.Status
		if err := getJSON(server+"/api/v1/audits/"+id+"/status", &status); err != nil {
			return nil, err
		}

		bar.Describe("   " + status.Message)
		bar.Set(status.Progress)

		if status.IsTerminal() {
			bar.Finish()
			fmt.Println()

			var report domain.AuditReport
			if err := getJSON(server+"/api/v1/audits/"+id, &report); err != nil {
				return nil, err
			}
			return &report, nil
		}

		time.Sleep(time.Second)
	}
	return nil, fmt.Errorf("audit did not complete within %s", timeout)
}

func getJSON(url string, v any) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *httputil.Error `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return err
	}
	if !envelope.Success {
		if envelope.Error != nil {
			return fmt.Errorf("%s", envelope.Error.Message)
		}
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	return json.Unmarshal(envelope.Data, v)
}

func printSummary(report *domain.AuditReport) {
	bold.Println("=== Audit Summary ===")
	if report.Target.Kind == domain.TargetKindURL {
		fmt.Printf("Target: %s\n", report.Target.URL)
	} else {
		fmt.Printf("Target: uploaded image (%s)\n", report.Target.MIMEType)
	}
	fmt.Printf("Status: %s\n", report.Status.Message)

	if report.Categories != nil {
		fmt.Println()
		bold.Println("Category scores")
		printScore("typography", report.Categories.Typography)
		printScore("contrast", report.Categories.Contrast)
		printScore("calls to action", report.Categories.CTA)
		printScore("mobile readiness", report.Categories.Mobile)
	}

	if report.Analysis == nil {
		fmt.Println()
		yellow.Println("AI analysis was unavailable for this run.")
		return
	}

	fmt.Println()
	printScore("overall (AI)", report.Analysis.OverallScore)

	if report.Analysis.VisualDescription != "" {
		fmt.Println()
		bold.Println("Visual description")
		fmt.Println(report.Analysis.VisualDescription)
	}

	if len(report.Analysis.Issues) > 0 {
		fmt.Println()
		bold.Printf("Issues (%d)\n", len(report.Analysis.Issues))
		for _, issue := range report.Analysis.Issues {
			red.Print("  ✗ ")
			fmt.Println(issue.Text)
			if issue.Recommendation != "" {
				dim.Printf("    → %s\n", issue.Recommendation)
			}
		}
	}

	if len(report.Analysis.Suggestions) > 0 {
		fmt.Println()
		bold.Printf("Suggestions (%d)\n", len(report.Analysis.Suggestions))
		for _, s := range report.Analysis.Suggestions {
			green.Print("  + ")
			fmt.Println(s.Text)
		}
	}
}

func printScore(label string, score int) {
	c := red
	switch {
	case score >= 80:
		c = green
	case score >= 60:
		c = yellow
	}
	fmt.Printf("  %-18s ", label)
	c.Printf("%d/100\n", score)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
