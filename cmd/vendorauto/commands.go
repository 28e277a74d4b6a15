package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/akashrathod3565/Vendor-Automation-Application/internal/app"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/credential"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/engine"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/metrics"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/model"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/store"
)

func handleTUI(args []string) error {
	fs := flag.NewFlagSet("tui", flag.ExitOnError)
	configPath := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	rt, err := setup(*configPath, true)
	if err != nil {
		return err
	}
	defer rt.close()

	var program *tea.Program
	// Triggers fire on the scheduler goroutine or, for an on-demand fetch
	// while stopped, inside the program's update loop; Send must not block
	// either.
	sched, err := rt.svc.NewScheduler(func(reason string) {
		go program.Send(app.FetchTriggerMsg{Reason: reason})
	})
	if err != nil {
		return err
	}

	program = tea.NewProgram(app.New(app.DepsFor(rt.svc, sched)), tea.WithAltScreen())
	rt.svc.SetReporter(func(msg string) {
		program.Send(app.LogLineMsg{At: time.Now(), Text: msg})
	})

	sched.Start()
	defer sched.Stop()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("running console: %w", err)
	}
	return nil
}

func handleServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := commonFlags(fs)
	manual := fs.String("manual", "", "Only file mail from this address")
	metricsAddr := fs.String("metrics-addr", "", "Address for the /metrics endpoint (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rt, err := setup(*configPath, false)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := rt.logger
	sched, err := rt.svc.NewScheduler(func(reason string) {
		req := engine.FetchRequest{ManualEmail: *manual, Trigger: reason}
		rt.svc.Engine.FetchAsync(ctx, req, func(rep *engine.Report) {
			if rep != nil && rep.Err != nil {
				logger.Error("scheduled fetch failed", "run_id", rep.ID, "error", rep.Err)
			}
		})
	})
	if err != nil {
		return err
	}

	addr := rt.cfg.Metrics.Addr
	if *metricsAddr != "" {
		addr = *metricsAddr
	}
	if addr != "" {
		go func() {
			if err := metrics.Serve(ctx, addr, logger); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	sched.Start()
	var times []string
	for _, t := range sched.Times() {
		times = append(times, t.String())
	}
	logger.Info("scheduler started", "times", strings.Join(times, ","), "next", sched.NextRun())

	<-ctx.Done()
	logger.Info("shutting down")
	// Stop does not wait for a fetch already in flight.
	sched.Stop()
	return nil
}

func handleFetch(args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	configPath := commonFlags(fs)
	manual := fs.String("manual", "", "Only file mail from this address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rt, err := setup(*configPath, false)
	if err != nil {
		return err
	}
	defer rt.close()
	rt.svc.SetReporter(printLine)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep := rt.svc.Engine.Fetch(ctx, engine.FetchRequest{ManualEmail: *manual, Trigger: "cli"})
	fmt.Println(app.Summary(rep))
	return rep.Err
}

func handleSend(args []string) error {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	configPath := commonFlags(fs)
	manual := fs.String("manual", "", "Send to this address only instead of the registry")
	subject := fs.String("subject", "", "Subject (overrides config)")
	bodyFile := fs.String("body-file", "", "File holding the body template (overrides config)")
	attachment := fs.String("attachment", "", "File to attach (overrides config)")
	cc := fs.String("cc", "", "Extra CC addresses, separated by ';' or ','")
	autoSend := fs.Bool("auto-send", false, "Send immediately instead of leaving drafts")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rt, err := setup(*configPath, false)
	if err != nil {
		return err
	}
	defer rt.close()
	rt.svc.SetReporter(printLine)

	req := rt.svc.DispatchDefaults()
	req.ManualEmail = *manual
	req.Trigger = "cli"
	if *subject != "" {
		req.Subject = *subject
	}
	if *bodyFile != "" {
		body, err := os.ReadFile(*bodyFile)
		if err != nil {
			return fmt.Errorf("reading body template: %w", err)
		}
		req.BodyTemplate = string(body)
	}
	if *attachment != "" {
		req.AttachmentPath = *attachment
	}
	if *cc != "" {
		req.ManualCC = *cc
	}
	if *autoSend {
		req.AutoSend = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep := rt.svc.Engine.Dispatch(ctx, req)
	fmt.Println(app.Summary(rep))
	return rep.Err
}

func handleHistory(args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := commonFlags(fs)
	limit := fs.Int("limit", 20, "Number of entries to show")
	action := fs.String("action", "", "Only show entries with this action")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rt, err := setup(*configPath, false)
	if err != nil {
		return err
	}
	defer rt.close()

	filter := store.AuditFilter{Limit: *limit}
	if *action != "" {
		if !validAction(*action) {
			return fmt.Errorf("unknown action %q", *action)
		}
		filter.Action = action
	}

	entries, err := rt.svc.History(context.Background(), filter)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No activity recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIMESTAMP\tACTION\tSUPPLIER\tVENDOR EMAILS\tDETAILS")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			e.Action, e.Supplier, strings.Join(e.VendorEmails, ";"), e.Details)
	}
	return w.Flush()
}

func validAction(action string) bool {
	for _, a := range model.Actions() {
		if string(a) == action {
			return true
		}
	}
	return false
}

func handleCredentials(args []string) error {
	if len(args) == 0 || args[0] != "set" {
		fmt.Println("Usage: vendorauto credentials set [--config path] [--username user]")
		return errors.New("missing credentials subcommand")
	}

	fs := flag.NewFlagSet("credentials set", flag.ExitOnError)
	configPath := commonFlags(fs)
	username := fs.String("username", "", "Mail account (defaults to mail.username from config)")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	user := *username
	if user == "" {
		user = cfg.Mail.Username
	}
	if strings.TrimSpace(user) == "" {
		return errors.New("no mail username configured; pass --username")
	}

	fmt.Fprintf(os.Stderr, "Password for %s: ", user)
	password, err := readLine(os.Stdin)
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}
	if password == "" {
		return errors.New("empty password")
	}

	vault, err := credential.Open()
	if err != nil {
		return err
	}
	if err := vault.Set(credential.MailKey(user), password); err != nil {
		return err
	}
	fmt.Printf("Stored mail password for %s\n", user)
	return nil
}

func handleOpen(args []string) error {
	fs := flag.NewFlagSet("open", flag.ExitOnError)
	configPath := commonFlags(fs)
	email := fs.String("email", "", "Vendor address; the supplier root is opened when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rt, err := setup(*configPath, false)
	if err != nil {
		return err
	}
	defer rt.close()

	path, err := rt.svc.OpenFolder(*email)
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func handleInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := os.Stat(*configPath); err == nil {
		return fmt.Errorf("config %s already exists", *configPath)
	}
	if err := model.SaveConfig(*configPath, model.DefaultAppConfig()); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", *configPath)
	return nil
}

func printLine(msg string) {
	fmt.Println(msg)
}

func readLine(f *os.File) (string, error) {
	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
