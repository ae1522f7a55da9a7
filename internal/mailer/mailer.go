package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/blues/dcs/internal/config"
	"github.com/blues/dcs/internal/logic"
	"github.com/blues/dcs/internal/model"
)

// Mailer 邮件发送协作方，实现event.Mailer。
// 发送失败由调用方记日志，不影响捐赠状态
type Mailer struct {
	cfg config.SmtpConfig
}

// New 创建邮件发送器
func New(cfg config.SmtpConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

// SendDonorReceipt 给捐赠人发送回执
func (m *Mailer) SendDonorReceipt(donation *model.Donation) error {
	if donation.DonorEmail == "" {
		return nil
	}

	name := donation.DonorName
	if name == "" {
		name = "Friend"
	}
	amount := logic.DisplayAmount(donation)

	subject := "Thank you for your donation"
	body := fmt.Sprintf(
		"Dear %s,\r\n\r\n"+
			"Thank you for your donation of $%s.\r\n"+
			"Reference: %s\r\n\r\n"+
			"With gratitude,\r\n%s\r\n",
		name, amount.StringFixed(2), donation.TransactionId, m.cfg.FromName)

	return m.send([]string{donation.DonorEmail}, subject, body)
}

// SendAdminNotification 给管理员发送到账通知
func (m *Mailer) SendAdminNotification(donation *model.Donation) error {
	if m.cfg.AdminEmail == "" {
		return nil
	}

	subject := fmt.Sprintf("New donation: $%s via %s",
		donation.Amount.StringFixed(2), donation.PaymentMethod)
	body := fmt.Sprintf(
		"Donation #%d\r\n"+
			"Amount: $%s\r\n"+
			"Donor: %s <%s>\r\n"+
			"Method: %s\r\n"+
			"Transaction: %s\r\n",
		donation.Id, donation.Amount.StringFixed(2),
		donation.DonorName, donation.DonorEmail,
		donation.PaymentMethod, donation.TransactionId)

	return m.send([]string{m.cfg.AdminEmail}, subject, body)
}

// send 组装并发送一封纯文本邮件
func (m *Mailer) send(to []string, subject, body string) error {
	from := m.cfg.FromAddress
	msg := strings.Join([]string{
		"From: " + fmt.Sprintf("%s <%s>", m.cfg.FromName, from),
		"To: " + strings.Join(to, ", "),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	}
	return smtp.SendMail(addr, auth, from, to, []byte(msg))
}
