package main

import "github.com/frahmantamala/payroll-admin/cmd"

func main() {
	cmd.Execute()
}
