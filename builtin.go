package main

import (
	_ "github.com/iluxa/sflow-rt/modules/exporters/csv"
	_ "github.com/iluxa/sflow-rt/modules/exporters/ipfix"
	_ "github.com/iluxa/sflow-rt/modules/exporters/kafka"
	_ "github.com/iluxa/sflow-rt/modules/exporters/null"
	_ "github.com/iluxa/sflow-rt/modules/exporters/sql"
	_ "github.com/iluxa/sflow-rt/modules/sources/replay"
	_ "github.com/iluxa/sflow-rt/modules/sources/sflow"
)
