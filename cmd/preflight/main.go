// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strings"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	admin := strings.TrimSpace(os.Getenv("ADMIN_API_KEYS"))
	pub := strings.TrimSpace(os.Getenv("PUBLIC_API_KEYS"))
	addr := strings.TrimSpace(os.Getenv("ADDR"))
	db := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	rds := strings.TrimSpace(os.Getenv("REDIS_URL"))
	devUser := strings.TrimSpace(os.Getenv("DEVICE_API_USER"))
	cloud := strings.TrimSpace(os.Getenv("CLOUD_API_BASE"))
	smtp := strings.TrimSpace(os.Getenv("SMTP_ADDR"))
	emails := strings.TrimSpace(os.Getenv("ADMIN_EMAILS"))
	snow := strings.TrimSpace(os.Getenv("SERVICENOW_HOST"))

	if admin == "" {
		fail("ADMIN_API_KEYS is empty (room lifecycle routes will 403).")
	}
	if pub == "" {
		fail("PUBLIC_API_KEYS is empty (read routes will 401).")
	}
	for name, v := range map[string]string{"ADMIN_API_KEYS": admin, "PUBLIC_API_KEYS": pub} {
		if strings.Contains(v, " ") {
			warn(name + " contains spaces; use comma-separated with no spaces, e.g. key1,key2")
		}
	}

	if devUser == "" && cloud == "" {
		fail("Neither DEVICE_API_USER nor CLOUD_API_BASE is set — no probe path can authenticate.")
	}
	if devUser != "" && os.Getenv("DEVICE_API_PASSWORD") == "" {
		warn("DEVICE_API_USER set but DEVICE_API_PASSWORD is empty.")
	}
	if cloud != "" && os.Getenv("CLOUD_API_TOKEN") == "" {
		warn("CLOUD_API_BASE set but CLOUD_API_TOKEN is empty — cloud probes will 401.")
	}

	if smtp == "" && snow == "" {
		warn("No SMTP_ADDR or SERVICENOW_HOST — alerts will be logged but not delivered.")
	}
	if smtp != "" && emails == "" {
		warn("SMTP_ADDR set but ADMIN_EMAILS is empty — email channel stays disabled.")
	}

	if addr == "" {
		warn("ADDR is empty; the default bind address will be used.")
	} else {
		ok("ADDR=" + addr)
	}
	if db == "" {
		warn("DATABASE_URL empty — samples and alerts live in memory and vanish on restart.")
	} else {
		ok("DATABASE_URL present")
	}
	if rds == "" {
		warn("REDIS_URL empty — notification dedup is per-process only.")
	} else {
		ok("REDIS_URL present")
	}

	ok("preflight passed")
}
