// Package fixtures provides test fixtures for abstractbot tests.
package fixtures

// SampleConfig is a sample YAML configuration. The %d verbs take the server
// port twice and the %s verb the Telegram API base.
const SampleConfig = `
server:
  domain: "http://127.0.0.1:%d"
  host: "127.0.0.1"
  port: %d
  metricsPath: "/metrics"

channels:
  telegram:
    enabled: true
    botToken: "${TEST_TELEGRAM_TOKEN}"
    apiBase: "%s"
  websocket:
    enabled: true
    tokens:
      secret-token: "alice"
  database:
    enabled: true

logging:
  level: "debug"
  pretty: false
`

// TelegramToken is the bot token the fixtures are written for.
const TelegramToken = "123:test"

// TelegramUpdate is a private text message update.
const TelegramUpdate = `{
  "update_id": 1,
  "message": {
    "message_id": 10,
    "from": {"id": 99, "is_bot": false, "first_name": "Ann"},
    "chat": {"id": 99, "type": "private"},
    "date": 1700000000,
    "text": "hello"
  }
}`

// TelegramSentMessage is the sendMessage result the mock API answers with.
const TelegramSentMessage = `{
  "ok": true,
  "result": {
    "message_id": 11,
    "chat": {"id": 99, "type": "private"},
    "date": 1700000001,
    "text": "ok"
  }
}`

// DatabaseMessage is a database channel request.
const DatabaseMessage = `{"from": "bob", "text": "ping"}`

// WebsocketLogin is the first frame a websocket client sends.
const WebsocketLogin = `{"token": "secret-token", "text": "hi there", "timestamp": 1700000000000}`
