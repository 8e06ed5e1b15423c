package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"minimail/pkg/client"
)

func renderMails(w io.Writer, mails []client.Mail, counterpart string) {
	if len(mails) == 0 {
		fmt.Fprintln(w, "No mails.")
		return
	}

	data := make([][]string, 0, len(mails))
	for _, m := range mails {
		status := ""
		if !m.IsRead {
			status = "new"
		}
		peer := m.From
		if counterpart == "To" {
			peer = m.To
		}
		data = append(data, []string{m.ID, peer, m.Subject, humanize.Time(m.Timestamp), status})
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", counterpart, "Subject", "When", ""})
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
	table.SetNoWhiteSpace(true)
	table.AppendBulk(data)
	table.Render()
}

func renderMail(w io.Writer, m *client.Mail) {
	fmt.Fprintf(w, "From:    %s\n", m.From)
	fmt.Fprintf(w, "To:      %s\n", m.To)
	fmt.Fprintf(w, "Date:    %s (%s)\n", m.Timestamp.Local().Format(time.DateTime), humanize.Time(m.Timestamp))
	fmt.Fprintf(w, "Subject: %s\n\n", m.Subject)
	fmt.Fprintln(w, m.Body)
}
