// Command ldo-simctl is a small operator CLI for cmd/ldo-simd: it submits
// commands to a running simulator's /cmdq endpoint and renders its
// /debug/workers state as a table, mirroring the teacher's cacct in
// miniature (kingpin flags, a go-pretty table, no persistent state of its
// own).
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/jedib0t/go-pretty/v6/table"
)

var (
	app = kingpin.New("ldo-simctl", "Inspect and drive a running ldo-simd simulator.")

	flagAddr = app.Flag("addr", "Base URL of the ldo-simd instance.").Default("http://localhost:9401").String()

	statusCmd = app.Command("status", "Show every simulated rank's worker state.")

	submitCmd  = app.Command("submit", "Submit a collective to a rank.")
	submitRank = submitCmd.Arg("rank", "Rank to submit the command to.").Required().Int()
)

type workerStatus struct {
	Rank           int    `json:"rank"`
	StateName      string `json:"state_name"`
	CmpCount       uint64 `json:"cmp_count"`
	RemoteCmpCount uint64 `json:"remote_cmp_count"`
}

func main() {
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := &http.Client{Timeout: 5 * time.Second}

	switch cmd {
	case statusCmd.FullCommand():
		if err := runStatus(client, *flagAddr); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	case submitCmd.FullCommand():
		if err := runSubmit(client, *flagAddr, *submitRank); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}

func runStatus(client *http.Client, addr string) error {
	resp, err := client.Get(addr + "/debug/workers")
	if err != nil {
		return fmt.Errorf("ldo-simctl: fetch worker status: %w", err)
	}
	defer resp.Body.Close()

	var statuses []workerStatus
	if err := json.NewDecoder(resp.Body).Decode(&statuses); err != nil {
		return fmt.Errorf("ldo-simctl: decode worker status: %w", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Rank", "State", "CmpCount", "RemoteCmpCount"})
	for _, s := range statuses {
		t.AppendRow(table.Row{s.Rank, s.StateName, s.CmpCount, s.RemoteCmpCount})
	}
	t.Render()

	return nil
}

func runSubmit(client *http.Client, addr string, rank int) error {
	body, _ := json.Marshal(map[string]int{"rank": rank})

	resp, err := client.Post(addr+"/cmdq", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ldo-simctl: submit command: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ldo-simctl: submit command: %s: %s", resp.Status, b)
	}

	fmt.Fprintf(os.Stdout, "submitted command to rank %d\n", rank)
	return nil
}
