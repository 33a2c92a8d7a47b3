// Package zeronotes provides a Go client SDK for ZeroNotes, a
// zero-knowledge encrypted note service.
//
// All encryption happens on the device. The server (or a shared file
// target) only ever stores ciphertext, wrapped keys and sync metadata;
// the account password, the derived keys and all plaintext never leave
// the client. Notes and folders can carry their own secondary password
// with a durable lockout, and a 24-word recovery phrase keeps the
// account reachable if the password is lost.
//
// Basic usage:
//
//	client, err := zeronotes.New(zeronotes.WithDataDir(dir))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	phrase, err := client.Register(ctx, "me@example.com", password)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	// Show phrase to the user exactly once; it cannot be re-derived.
//
//	note, err := client.CreateNote("groceries", "milk, coffee")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	report, err := client.Sync(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("pushed %d changes\n", report.Pushed)
package zeronotes
