package main

import (
	"errors"
	"os"

	"github.com/ralt/pkgimport/internal/cli"
	"github.com/ralt/pkgimport/internal/models"
	"github.com/sirupsen/logrus"
)

func main() {
	// Setup logging format
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	rootCmd := cli.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		var importErr *models.ImportError
		if errors.As(err, &importErr) {
			logrus.WithFields(logrus.Fields{
				"kind": importErr.Type.String(),
				"path": importErr.Path,
			}).Error(importErr.Err)
		} else {
			logrus.Error(err)
		}
		os.Exit(1)
	}
}
