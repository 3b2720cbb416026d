// Package config loads and watches the jobwatch configuration file
// (config.yaml).
//
// Top-level types:
//   - Config{Jenkins, Poll, Limits, Notify, Status} — full config tree
//     parsed from YAML
//   - JenkinsConfig — domain, job, username, token_env, tls; Token() resolves
//     the API token from the environment
//   - PollConfig — build_interval, job_interval (0 disables the job loop)
//   - Limits — the flat threshold set driving the alert rules
//   - NotifyConfig/WebhookConfig — webhook targets, URLs resolved from
//     environment variables via URL()
//   - StatusConfig — local status server port and broadcast interval
//
// Load(path) reads the YAML file, applies defaults (5s build poll, 90m job
// poll, the stock thresholds, port 8080), then validates required fields and
// enums. Any missing or non-positive threshold is a fatal load error.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. It handles the rename→create pattern
// used by atomic-save editors by re-adding the watch after a rename event.
// Thresholds stay fixed for the process lifetime; callers use Watch for
// logging only.
package config
