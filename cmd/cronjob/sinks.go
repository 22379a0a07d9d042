package main

import (
	"rentflow-backend/internal/config"
	"rentflow-backend/internal/events"
	"rentflow-backend/internal/repository"
	"rentflow-backend/internal/service"
)

// buildNotificationSink assembles the configured notification channels. The
// returned func releases channel resources.
func buildNotificationSink(cfg *config.Config, notes repository.NotificationRepository) (*service.MultiSink, func() error) {
	sink := service.NewMultiSink()

	switch cfg.Email.Provider {
	case "sendgrid":
		sink.Add("email", service.NewEmailNotifier(
			service.NewSendGridSender(cfg.Email.SendGridAPIKey, cfg.Email.From, cfg.Email.FromName),
		))
	case "smtp":
		sink.Add("email", service.NewEmailNotifier(
			service.NewSMTPSender(cfg.Email.SMTPHost, cfg.Email.SMTPPort,
				cfg.Email.SMTPUser, cfg.Email.SMTPPassword, cfg.Email.From, cfg.Email.FromName),
		))
	}

	sink.Add("in_app", service.NewInAppNotifier(notes))

	closer := func() error { return nil }
	if cfg.Kafka.Enabled() {
		producer := events.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		sink.Add("realtime", service.NewRealtimeNotifier(producer))
		closer = producer.Close
	}
	return sink, closer
}
