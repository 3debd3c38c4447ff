package server

import (
	"net/http"

	"github.com/Tyrowin/gameportal/internal/logging"
)

// TestPageHandler serves an HTML page for exercising the chat protocol from a
// browser: join with a username, send messages, and watch typing presence.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := w.Write([]byte(testPageHTML)); err != nil {
		logging.Error().Err(err).Msg("Error writing HTML response")
	}
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Game Portal Chat Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        input[type="text"] { width: 240px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
        button:hover { background-color: #005a87; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
        #typing { color: #888; font-style: italic; min-height: 1.2em; }
    </style>
</head>
<body>
    <h1>Game Portal Chat Test</h1>

    <div id="status" class="status disconnected">Disconnected</div>

    <div>
        <input type="text" id="usernameInput" placeholder="Username">
        <input type="text" id="tokenInput" placeholder="Token (optional)">
        <button id="connectButton" onclick="toggleConnection()">Connect</button>
    </div>
    <div style="margin-top: 10px">
        <input type="text" id="messageInput" placeholder="Type a message..." disabled>
        <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
    </div>

    <div id="messages"></div>
    <div id="typing"></div>

    <script>
        let ws = null;
        let typing = false;
        let typingTimer = null;
        const me = () => document.getElementById('usernameInput').value.trim();
        const messagesDiv = document.getElementById('messages');
        const messageInput = document.getElementById('messageInput');
        const sendButton = document.getElementById('sendButton');
        const connectButton = document.getElementById('connectButton');
        const statusDiv = document.getElementById('status');
        const typingDiv = document.getElementById('typing');

        function addLine(text, color) {
            const el = document.createElement('div');
            el.style.margin = '5px 0';
            el.style.color = color || 'gray';
            el.textContent = text;
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function emit(type, data) {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify(data === undefined ? { type } : { type, data }));
            }
        }

        function updateStatus(connected) {
            statusDiv.textContent = connected ? 'Connected as ' + me() : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            messageInput.disabled = !connected;
            sendButton.disabled = !connected;
            connectButton.textContent = connected ? 'Disconnect' : 'Connect';
        }

        function connect() {
            if (!me()) {
                addLine('Enter a username first');
                return;
            }
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            const token = document.getElementById('tokenInput').value.trim();
            const query = token ? '?token=' + encodeURIComponent(token) : '';
            ws = new WebSocket(scheme + location.host + '/ws' + query);

            ws.onopen = () => {
                updateStatus(true);
                emit('user_joined', { username: me() });
            };

            ws.onmessage = (event) => {
                const frame = JSON.parse(event.data);
                const d = frame.data;
                switch (frame.type) {
                case 'chat_message':
                    addLine('[' + d.timestamp + '] ' + d.username + ': ' + d.message, d.username === me() ? 'blue' : 'green');
                    break;
                case 'user_joined':
                case 'user_left':
                case 'system_message':
                    addLine('[' + d.timestamp + '] ' + d.message);
                    break;
                case 'user_typing':
                    const others = d.filter((name) => name !== me());
                    typingDiv.textContent = others.length ? others.join(', ') + ' typing...' : '';
                    break;
                }
            };

            ws.onclose = () => {
                addLine('Connection closed');
                typingDiv.textContent = '';
                updateStatus(false);
                ws = null;
            };
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
            } else {
                connect();
            }
        }

        function stopTyping() {
            if (typing) {
                typing = false;
                emit('typing_stop');
            }
        }

        function sendMessage() {
            const message = messageInput.value.trim();
            if (message) {
                emit('chat_message', { message });
                messageInput.value = '';
                stopTyping();
            }
        }

        messageInput.addEventListener('input', () => {
            if (!typing) {
                typing = true;
                emit('typing_start');
            }
            clearTimeout(typingTimer);
            typingTimer = setTimeout(stopTyping, 1000);
        });

        messageInput.addEventListener('keypress', (e) => {
            if (e.key === 'Enter') {
                sendMessage();
            }
        });
    </script>
</body>
</html>`
