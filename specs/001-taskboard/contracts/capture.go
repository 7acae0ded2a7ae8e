// Package contracts/capture defines the mailbox capture contract:
// how unread IMAP messages become task records on the platform.
//
// Library: emersion/go-imap v2 + emersion/go-message
// Auth: username + password (stored in system keychain)
package contracts

// Selection:
//   SELECT the configured folder (default "INBOX").
//   UID SEARCH UNSEEN SINCE <now - lookback_days>.
//   FETCH envelope, flags, and body with Peek, so reading a candidate
//   does not mark it seen.
//
// Mapping (message -> task record):
//   id:          client-generated UUID (server may replace it)
//   title:       subject, whitespace trimmed. Empty falls back to
//                "(no subject)".
//   description: "From: <sender>" line, then the text/plain part.
//                HTML-only messages get the HTML stripped to rough
//                plain text instead.
//   status:      "not_started"
//   priority:    "medium", or "high" when the message is \Flagged
//   creator/assignee: the capturing user on both sides, so captured
//                tasks land in that user's relevance window.
//
// Idempotency:
//   STORE +FLAGS (\Seen) only after the task insert succeeds.
//   Insert failures leave the message unseen so the next sweep
//   retries it. A failed seen-store after a successful insert is
//   logged; that message may produce a duplicate task next sweep,
//   and the platform record is the authority for cleanup.
//
// Scheduling:
//   One-shot: a single sweep (the --once flag).
//   Recurring: robfig/cron v3 with the configured cron expression
//   (descriptors like "@every 10m" included). Each sweep runs under
//   a 2 minute timeout, so a slow mailbox cannot wedge the schedule.
