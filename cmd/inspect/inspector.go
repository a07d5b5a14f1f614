package main

import (
	"chat-relay/repositories"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

// Inspector renders badger records as tables. Values are decoded with the repository types.
type Inspector struct {
	db         *badger.DB
	out        io.Writer
	maxContent int
}

func NewInspector(db *badger.DB, out io.Writer, maxContent int) *Inspector {
	return &Inspector{db: db, out: out, maxContent: maxContent}
}

func (i *Inspector) Rooms() error {
	table := i.newTable("Room", "Name", "Private", "Participants", "Last message", "Created")
	count := 0
	err := i.scan("room:", func(key string, value []byte) error {
		var room repositories.DiskRoom
		if err := json.Unmarshal(value, &room); err != nil {
			fmt.Fprintf(i.out, "Error decoding key %s: %v\n", key, err)
			return nil
		}
		name := ""
		if room.Name != nil {
			name = *room.Name
		}
		lastMessage := ""
		if room.LastMessageID != nil {
			lastMessage = *room.LastMessageID
		}
		table.Append([]string{
			room.ID,
			name,
			strconv.FormatBool(room.IsPrivate),
			strings.Join(room.Participants, ", "),
			lastMessage,
			room.CreatedAt.Format(time.DateTime),
		})
		count++
		return nil
	})
	if err != nil {
		return err
	}
	i.title(fmt.Sprintf("Rooms (%d)", count))
	table.Render()
	return nil
}

// Messages lists every message, or only those of room when it is set, in storage order.
func (i *Inspector) Messages(room string) error {
	prefix := "msg:"
	if room != "" {
		prefix = "msg:" + room + ":"
	}
	table := i.newTable("Room", "Seq", "Message", "Author", "Content", "Attachment", "At")
	count := 0
	err := i.scan(prefix, func(key string, value []byte) error {
		var message repositories.DiskMessage
		if err := json.Unmarshal(value, &message); err != nil {
			fmt.Fprintf(i.out, "Error decoding key %s: %v\n", key, err)
			return nil
		}
		attachment := ""
		if message.Attachment != nil {
			attachment = fmt.Sprintf("%s (%s)", message.Attachment.Name, message.Attachment.MimeType)
		}
		table.Append([]string{
			message.Room,
			strconv.FormatUint(message.Seq, 10),
			message.ID,
			message.Author,
			truncate(message.Content, i.maxContent),
			attachment,
			message.At.Format(time.DateTime),
		})
		count++
		return nil
	})
	if err != nil {
		return err
	}
	i.title(fmt.Sprintf("Messages (%d)", count))
	table.Render()
	return nil
}

func (i *Inspector) scan(prefix string, fn func(key string, value []byte) error) error {
	return i.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			err := item.Value(func(v []byte) error {
				return fn(string(item.Key()), v)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (i *Inspector) newTable(header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(i.out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func (i *Inspector) title(text string) {
	fmt.Fprintln(i.out, color.New(color.BgBlack, color.FgGreen).Render("  ====== "+text+" ======"))
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "…"
}
