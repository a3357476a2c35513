package main

import "github.com/pvictorino/zapcampaign/cmd"

func main() {
	cmd.Execute()
}
