package main

import (
	"batepapo/backend/internal/config"
	"batepapo/backend/internal/messaging"
	"batepapo/backend/internal/presence"
	"batepapo/backend/internal/storage"
	"batepapo/backend/internal/validation"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

const usage = `Usage: admin <command> [args]

Commands:
  participants               list active participants, stale ones highlighted
  messages <name> [limit]    list the messages <name> can see
  kick <participant-id>      remove a participant
  sweep                      run one sweep cycle now`

type admin struct {
	registry  *presence.Registry
	messages  *messaging.Log
	sweeper   *presence.Sweeper
	threshold time.Duration
	out       io.Writer
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := config.NewLogger(cfg.LogLevel)

	dialector, err := storage.Dialector(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	// No redis needed for admin CLI: changes show up on the next read of the clients.
	s := storage.NewStorageService(dialector, nil, log)

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Connect(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect database: %v\n", err)
		os.Exit(1)
	}

	a := newAdmin(s, cfg, log, os.Stdout)
	go a.registry.Run(ctx)

	err = a.run(ctx, os.Args[1:])
	cancel()
	_ = s.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newAdmin(s storage.Storage, cfg config.Config, log *slog.Logger, out io.Writer) *admin {
	v := validation.New()
	r := presence.NewRegistry(s, v, presence.WithLogger(log))
	return &admin{
		registry:  r,
		messages:  messaging.NewLog(s, r, v, nil, log),
		sweeper:   presence.NewSweeper(r, cfg.SweepInterval, cfg.StaleThreshold, cfg.SweepConcurrency, log),
		threshold: cfg.StaleThreshold,
		out:       out,
	}
}

func (a *admin) run(ctx context.Context, args []string) error {
	switch args[0] {
	case "participants":
		return a.listParticipants(ctx)
	case "messages":
		if len(args) < 2 || len(args) > 3 {
			return fmt.Errorf("usage: admin messages <name> [limit]")
		}
		limit := 0
		if len(args) == 3 {
			n, err := strconv.Atoi(args[2])
			if err != nil || n < 0 {
				return fmt.Errorf("invalid limit %q: provide a non-negative integer", args[2])
			}
			limit = n
		}
		return a.listMessages(ctx, args[1], limit)
	case "kick":
		if len(args) != 2 {
			return fmt.Errorf("usage: admin kick <participant-id>")
		}
		if err := a.registry.Leave(ctx, args[1]); err != nil {
			return fmt.Errorf("error kicking participant: %w", err)
		}
		fmt.Fprintf(a.out, "Participant %s has been removed.\n", args[1])
		return nil
	case "sweep":
		return a.sweep(ctx)
	default:
		return fmt.Errorf("unknown command %q\n\n%s", args[0], usage)
	}
}

func (a *admin) listParticipants(ctx context.Context) error {
	participants, err := a.registry.List(ctx)
	if err != nil {
		return err
	}
	now := a.registry.Now()

	table := newTable(a.out, "ID", "Name", "Last seen", "Idle")
	for _, p := range participants {
		idle := now.Sub(p.LastSeen).Truncate(time.Second)
		name := p.Name
		if p.IsStale(now, a.threshold) {
			name = color.New(color.FgRed).Render(name)
		}
		table.Append([]string{p.ID, name, p.LastSeen.Format(time.RFC3339), idle.String()})
	}
	table.Render()
	fmt.Fprintf(a.out, "%d participant(s)\n", len(participants))
	return nil
}

func (a *admin) listMessages(ctx context.Context, name string, limit int) error {
	msgs, err := a.messages.ListFor(ctx, name, limit)
	if err != nil {
		return err
	}

	table := newTable(a.out, "ID", "Time", "From", "To", "Type", "Text")
	for _, m := range msgs {
		table.Append([]string{strconv.FormatUint(uint64(m.ID), 10), m.Time, m.From, m.To, m.Type, m.Text})
	}
	table.Render()
	return nil
}

func (a *admin) sweep(ctx context.Context) error {
	report := a.sweeper.Sweep(ctx)

	fmt.Fprintf(a.out, "Scanned %d, stale %d, evicted %d\n", report.Scanned, report.Stale, len(report.Evicted))
	for _, name := range report.Evicted {
		fmt.Fprintf(a.out, "  evicted %s\n", name)
	}
	failed := make([]string, 0, len(report.Failed))
	for name := range report.Failed {
		failed = append(failed, name)
	}
	sort.Strings(failed)
	for _, name := range failed {
		fmt.Fprintf(a.out, "  %s %s: %v\n", color.New(color.FgRed).Render("failed"), name, report.Failed[name])
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d eviction(s) failed", len(failed))
	}
	return nil
}

func newTable(out io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	return table
}
