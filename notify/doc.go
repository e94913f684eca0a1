// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package notify delivers one-time codes out of band.

# Channels

A Channel knows whether it can reach a recipient and how to send to it:

  - EmailChannel: SMTP with STARTTLS and PLAIN auth
  - SMSChannel: JSON POST to an HTTP SMS gateway
  - ConsoleChannel: writes the code to the log (development only)

# Dispatcher

The Dispatcher owns a bounded queue and a fixed pool of workers:

	d := notify.NewDispatcher(notify.Config{Workers: 4}, logger, email, sms)
	d.OnResult(notify.AuditResults(trail, m))
	d.Start()
	defer d.Close()

	err := d.Submit(job) // ErrQueueFull, ErrClosed, ErrNoChannel

Submit returns as soon as the job is queued. Each job is sent over all of
its channels concurrently; failures are reported to the ResultFunc and never
to the request that queued the job. Close drains queued jobs before
returning.
*/
package notify
