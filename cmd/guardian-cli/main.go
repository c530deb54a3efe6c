package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	goGuardian "github.com/MrEthical07/goGuardian"
	"github.com/redis/go-redis/v9"
)

func main() {
	os.Exit(run())
}

// run returns the exit code so deferred cleanup happens before the process exits.
func run() int {
	var (
		serviceURL   = flag.String("service-url", "", "MFA service URL; overrides GUARDIAN_SERVICE_URL")
		requestToken = flag.String("request-token", "", "request token issued by the login page")
		resumeTx     = flag.String("resume", "", "transaction id to load from redis instead of starting one")
		mode         = flag.String("transport", "", "socket, polling or manual; overrides GUARDIAN_TRANSPORT")
		method       = flag.String("method", "", "enrollment or authentication method")
		phone        = flag.String("phone", "", "phone number for sms enrollment")
		redisAddr    = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env is used and persistence is optional")
		save         = flag.Bool("save", false, "save the transaction to redis before waiting")
		auditLog     = flag.Bool("audit", false, "write audit records to stderr")
		wait         = flag.Duration("wait", 5*time.Minute, "how long to wait for the outcome")
	)
	flag.Parse()

	if *requestToken == "" && *resumeTx == "" {
		fmt.Fprintln(os.Stderr, "one of -request-token or -resume is required")
		return 2
	}

	cfg, err := loadConfig(*serviceURL, *mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 2
	}
	cfg.Audit.Enabled = *auditLog

	builder := goGuardian.New().WithConfig(cfg).WithAuditSink(goGuardian.NewJSONWriterSink(os.Stderr))

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		defer client.Close()
		builder = builder.WithRedis(client)
		fmt.Printf("using redis at %s\n", addr)
	}

	guardian, err := builder.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build: %v\n", err)
		return 1
	}
	defer guardian.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *wait)
	defer cancel()

	var tx *goGuardian.Transaction
	if *resumeTx != "" {
		tx, err = guardian.Load(ctx, *resumeTx)
	} else {
		tx, err = guardian.Start(ctx, *requestToken)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "open transaction: %v\n", err)
		return 1
	}
	fmt.Printf("transaction %s enrolled=%v expires in %s\n", tx.ID(), tx.IsEnrolled(), tx.Token().RemainingTime().Round(time.Second))

	if *save {
		if err := guardian.Save(ctx, tx); err != nil {
			fmt.Fprintf(os.Stderr, "save: %v\n", err)
			return 1
		}
	}

	done := make(chan int, 1)
	tx.On(goGuardian.EventEnrollmentComplete, func(payload any) {
		if p, ok := payload.(goGuardian.EnrollmentCompletePayload); ok {
			printJSON("enrollment-complete", map[string]any{
				"method":        p.Method,
				"auth_required": p.AuthRequired,
				"recovery_code": p.RecoveryCode,
				"methods":       p.Enrollment.Methods(),
			})
		}
		report(done, 0)
	})
	tx.On(goGuardian.EventAuthResponse, func(payload any) {
		printJSON("auth-response", payload)
		if p, ok := payload.(goGuardian.AuthResponsePayload); ok && !p.Accepted {
			report(done, 1)
			return
		}
		report(done, 0)
	})
	tx.On(goGuardian.EventTimeout, func(any) {
		fmt.Fprintln(os.Stderr, "transaction timed out")
		report(done, 1)
	})
	tx.On(goGuardian.EventError, func(payload any) {
		fmt.Fprintf(os.Stderr, "error: %v\n", payload)
		report(done, 1)
	})

	in := bufio.NewReader(os.Stdin)
	if tx.IsEnrolled() {
		authenticate(tx, goGuardian.Method(*method), in, done)
	} else {
		enroll(tx, goGuardian.Method(*method), *phone, in, done)
	}

	code := 1
	select {
	case code = <-done:
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "gave up waiting")
	}
	_ = tx.Close()
	return code
}

// report records the first outcome; later ones are dropped so listeners never block the
// transaction.
func report(done chan<- int, code int) {
	select {
	case done <- code:
	default:
	}
}

func loadConfig(serviceURL, mode string) (goGuardian.Config, error) {
	cfg := goGuardian.DefaultConfig()
	if os.Getenv("GUARDIAN_SERVICE_URL") != "" {
		loaded, err := goGuardian.LoadConfigFromEnv()
		if err != nil {
			return goGuardian.Config{}, err
		}
		cfg = loaded
	}
	if serviceURL != "" {
		cfg.ServiceURL = serviceURL
	}
	if mode != "" {
		cfg.Transport = goGuardian.TransportMode(mode)
	}
	return cfg, cfg.Validate()
}

func enroll(tx *goGuardian.Transaction, method goGuardian.Method, phone string, in *bufio.Reader, done chan<- int) {
	if method == "" {
		methods := tx.AvailableEnrollmentMethods()
		if len(methods) == 0 {
			fmt.Fprintln(os.Stderr, "no enrollment method available")
			report(done, 1)
			return
		}
		method = methods[0]
	}

	tx.Enroll(method, goGuardian.EnrollData{PhoneNumber: phone}, func(step *goGuardian.EnrollmentConfirmationStep, err error) {
		if err != nil {
			fmt.Fprintf(os.Stderr, "enroll: %v\n", err)
			report(done, 1)
			return
		}
		if uri := step.URI(); uri != "" {
			fmt.Printf("scan: %s\n", uri)
		}
		if method == goGuardian.MethodPush {
			fmt.Println("approve the enrollment in the Guardian app")
			return
		}
		go func() {
			code := prompt(in, "enter the code: ")
			step.Confirm(goGuardian.ConfirmData{OTPCode: code}, func(err error) {
				if err != nil {
					fmt.Fprintf(os.Stderr, "confirm: %v\n", err)
					report(done, 1)
				}
			})
		}()
	})
}

func authenticate(tx *goGuardian.Transaction, method goGuardian.Method, in *bufio.Reader, done chan<- int) {
	if method == goGuardian.MethodRecovery {
		go func() {
			code := prompt(in, "enter the recovery code: ")
			tx.Recover(goGuardian.RecoveryData{RecoveryCode: code}, func(err error) {
				if err != nil {
					fmt.Fprintf(os.Stderr, "recover: %v\n", err)
					report(done, 1)
				}
			})
		}()
		return
	}

	enrollment := tx.Enrollments()[0]
	tx.RequestAuth(enrollment, goGuardian.AuthOptions{Method: method}, func(step *goGuardian.AuthVerificationStep, err error) {
		if err != nil {
			fmt.Fprintf(os.Stderr, "request auth: %v\n", err)
			report(done, 1)
			return
		}
		if step.Method() == goGuardian.MethodPush {
			fmt.Println("approve the login in the Guardian app")
			step.Verify(goGuardian.VerifyData{}, nil)
			return
		}
		go func() {
			code := prompt(in, "enter the code: ")
			step.Verify(goGuardian.VerifyData{OTPCode: code}, func(err error) {
				if err != nil {
					fmt.Fprintf(os.Stderr, "verify: %v\n", err)
					report(done, 1)
				}
			})
		}()
	})
}

func prompt(in *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := in.ReadString('\n')
	return strings.TrimSpace(line)
}

func printJSON(event string, payload any) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		fmt.Printf("%s: %v\n", event, payload)
		return
	}
	fmt.Printf("%s: %s\n", event, data)
}
