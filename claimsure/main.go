package main

import (
	"os"

	"github.com/claimsure/claimsure-app/claimsure/claimsurecli"
	"github.com/claimsure/claimsure-app/log"
)

func main() {
	if err := claimsurecli.GetApp().Run(os.Args); err != nil {
		log.API.Fatal(err)
	}
}
