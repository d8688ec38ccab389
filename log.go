package graphsig

import (
	"github.com/sirupsen/logrus"

	"github.com/privacybydesign/graphsig/clause"
)

var Logger *logrus.Logger

func init() {
	Logger = logrus.StandardLogger()
	clause.Logger = Logger
}
