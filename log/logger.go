package log

import (
	"os"
	"path/filepath"

	"github.com/claimsure/claimsure-app/conf"
	"github.com/sirupsen/logrus"
)

var (
	API       logrus.FieldLogger
	Request   logrus.FieldLogger
	Resolver  logrus.FieldLogger
	Corporate logrus.FieldLogger
	Transport logrus.FieldLogger
)

func init() {
	API = Logger(logrus.New(), conf.GetEnv("CLAIMSURE_ERROR_LOG"),
		"api", conf.GetEnv("ENVIRONMENT"))
	Request = Logger(logrus.New(), conf.GetEnv("CLAIMSURE_REQUEST_LOG"),
		"api", conf.GetEnv("ENVIRONMENT"))
	Resolver = Logger(logrus.New(), conf.GetEnv("CLAIMSURE_RESOLVER_LOG"),
		"api", conf.GetEnv("ENVIRONMENT"))
	Corporate = Logger(logrus.New(), conf.GetEnv("CLAIMSURE_CORPORATE_LOG"),
		"api", conf.GetEnv("ENVIRONMENT"))

	Transport = Logger(logrus.New(), conf.GetEnv("CLAIMSURE_TRANSPORT_LOG"),
		"hospital", conf.GetEnv("ENVIRONMENT"))
}

func Logger(logger *logrus.Logger, outputFile string,
	application, environment string) logrus.FieldLogger {

	if outputFile != "" {
		if file, err := os.OpenFile(filepath.Clean(outputFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640); err == nil {
			logger.SetOutput(file)
		} else {
			logger.Infof("Failed to open output file %s. Will use stderr. %s",
				outputFile, err.Error())
		}
	}

	return logger.WithFields(logrus.Fields{
		"application": application,
		"environment": environment})
}
