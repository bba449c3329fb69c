package connections

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/Rapid-Works/RapidWorks-sub002/internal/config"
	"github.com/Rapid-Works/RapidWorks-sub002/internal/logging"
)

// Firebase bundles the clients created from one Firebase app. It is built once at
// startup and shared for the life of the process.
type Firebase struct {
	App       *firebase.App
	Firestore *firestore.Client
	Auth      *auth.Client
	Messaging *messaging.Client
}

func InitFirebase(ctx context.Context, cfg *config.Config) (*Firebase, error) {
	var opts []option.ClientOption
	// Without a credentials file fall back to application default credentials
	if _, err := os.Stat(cfg.FirebaseCredentialsFile); err == nil {
		opts = append(opts, option.WithCredentialsFile(cfg.FirebaseCredentialsFile))
	} else {
		logging.Warn().Str("file", cfg.FirebaseCredentialsFile).Msg("credentials file not found, using application default credentials")
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirebaseProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}

	fs, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		fs.Close()
		return nil, fmt.Errorf("auth client: %w", err)
	}

	fcmClient, err := app.Messaging(ctx)
	if err != nil {
		fs.Close()
		return nil, fmt.Errorf("fcm client: %w", err)
	}

	logging.Info().Str("project", cfg.FirebaseProjectID).Msg("Firebase connected")
	return &Firebase{
		App:       app,
		Firestore: fs,
		Auth:      authClient,
		Messaging: fcmClient,
	}, nil
}

func (f *Firebase) Close() {
	if f.Firestore != nil {
		if err := f.Firestore.Close(); err != nil {
			logging.Warn().Err(err).Msg("closing firestore client")
		}
	}
}
