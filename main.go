// SPDX-License-Identifier: GPL-3.0-or-later
package main

import (
	"context"

	"github.com/unifiedmail/go-inbox-unify/config"
	"github.com/unifiedmail/go-inbox-unify/directory"
	"github.com/unifiedmail/go-inbox-unify/imapbackend"
	"github.com/unifiedmail/go-inbox-unify/log"
	"github.com/unifiedmail/go-inbox-unify/unify"

	"github.com/sirupsen/logrus"
)

func main() {
	log.InitLogging("debug")
	logger := log.Logger(log.LOG_MAIN)

	conf, err := config.ReadConfig("config.toml")
	if err != nil {
		logger.WithField("error", err).Fatal("Could not load config")
	}

	if conf.Loglevel != nil {
		log.SetLogLevel(*conf.Loglevel)
	}

	accounts, err := directory.New(conf.Database)
	if err != nil {
		logger.WithField("error", err).Fatal("Could not open account directory")
	}
	defer accounts.Close()

	inbox, err := unify.NewUnifiedInbox(
		accounts,
		imapbackend.NewFactory(accounts),
		unify.Workers(conf.Workers),
		unify.RootListTimeout(conf.RootListTimeout()),
		unify.Locale(conf.Locale),
	)
	if err != nil {
		logger.WithField("error", err).Fatal("Could not start unified inbox")
	}

	ctx := context.Background()
	folders, err := inbox.GetSubfolders(ctx, unify.RootFolder)
	if err != nil {
		logger.WithField("error", err).Fatal("Could not list unified folders")
	}

	for _, f := range folders {
		logger.WithFields(logrus.Fields{"folder": f.FullName, "total": f.Total, "unread": f.Unread}).Info("Unified folder")

		subfolders, err := inbox.GetSubfolders(ctx, f.FullName)
		if err != nil {
			logger.WithFields(logrus.Fields{"folder": f.FullName, "error": err}).Fatal("Could not list account folders")
		}
		for _, sub := range subfolders {
			logger.WithFields(logrus.Fields{"folder": sub.FullName, "account": sub.Name, "total": sub.Total, "unread": sub.Unread}).Info("Account folder")
		}
	}
}
