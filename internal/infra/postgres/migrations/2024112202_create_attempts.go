package migrations

func init() {
	Migrations.MustRegister(execFile("2024112202_create_attempts.sql"), dropTable("attempts"))
}
