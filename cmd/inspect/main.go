// Command inspect dumps the relay's BadgerDB as a table for debugging.
// Opens the store read-only so it can run next to a live relay.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"

	"chat-relay/domain"
)

func main() {
	dbPath := flag.String("db", "/tmp/chat-relay", "Path to badger DB")
	prefix := flag.String("prefix", "", "Prefix to scan (msg:, msgid:, call:, calluser:, user:, chat:); empty scans everything")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLogger(nil))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Created", "Detail"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())
			err := item.Value(func(val []byte) error {
				kind, created, detail := describe(key, val)
				table.Append([]string{key, kind, created, detail})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

// describe decodes the value according to its key prefix. Index entries
// carry the target id as their raw value.
func describe(key string, val []byte) (kind, created, detail string) {
	switch {
	case strings.HasPrefix(key, "msg:"):
		var m domain.Message
		if err := json.Unmarshal(val, &m); err != nil {
			return "MSG", "", fmt.Sprintf("unreadable: %v", err)
		}
		detail = fmt.Sprintf("chat=%s sender=%s type=%s", m.ChatID, m.SenderID, m.Type)
		if m.IsDeleted {
			detail += " [deleted]"
		}
		return "MSG", m.CreatedAt.Format(time.TimeOnly), detail
	case strings.HasPrefix(key, "call:"):
		var c domain.Call
		if err := json.Unmarshal(val, &c); err != nil {
			return "CALL", "", fmt.Sprintf("unreadable: %v", err)
		}
		return "CALL", c.CreatedAt.Format(time.TimeOnly),
			fmt.Sprintf("caller=%s receiver=%s status=%s candidates=%d", c.CallerID, c.ReceiverID, c.Status, len(c.IceCandidates))
	case strings.HasPrefix(key, "user:"):
		var u domain.User
		if err := json.Unmarshal(val, &u); err != nil {
			return "USER", "", fmt.Sprintf("unreadable: %v", err)
		}
		online := "offline"
		if u.IsOnline {
			online = "online"
		}
		return "USER", u.CreatedAt.Format(time.TimeOnly),
			fmt.Sprintf("username=%s phone=%s %s", u.Username, u.PhoneNumber, online)
	case strings.HasPrefix(key, "chat:"):
		var c domain.Chat
		if err := json.Unmarshal(val, &c); err != nil {
			return "CHAT", "", fmt.Sprintf("unreadable: %v", err)
		}
		return "CHAT", c.CreatedAt.Format(time.TimeOnly),
			fmt.Sprintf("type=%s participants=%d last=%s", c.Type, len(c.Participants), c.LastMessageID)
	default:
		return "INDEX", "", string(val)
	}
}
