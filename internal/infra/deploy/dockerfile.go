package deploy

// DockerfileFor returns a build file template for the inferred stack, or ""
// when no template exists. Only used when the repository ships no
// Dockerfile of its own.
func DockerfileFor(t ProjectType) string {
	switch t {
	case TypeFlask:
		return `FROM python:3.11-slim
WORKDIR /app
COPY requirements.txt .
RUN pip install --no-cache-dir -r requirements.txt
COPY . .
ENV FLASK_APP=app.py
EXPOSE 5000
CMD ["flask", "run", "--host=0.0.0.0"]
`
	case TypeDjango:
		return `FROM python:3.11-slim
WORKDIR /app
COPY requirements.txt .
RUN pip install --no-cache-dir -r requirements.txt
COPY . .
RUN python manage.py migrate --no-input
EXPOSE 8000
CMD ["python", "manage.py", "runserver", "0.0.0.0:8000"]
`
	case TypeNodeJS, TypeReact, TypeNextJS:
		return `FROM node:18-alpine
WORKDIR /app
COPY package*.json ./
RUN npm install
COPY . .
RUN npm run build || true
EXPOSE 3000
CMD ["npm", "start"]
`
	case TypeStatic:
		return `FROM nginx:alpine
COPY . /usr/share/nginx/html
EXPOSE 8080
CMD ["nginx", "-g", "daemon off;"]
`
	case TypePHP:
		return `FROM php:8.1-apache
COPY . /var/www/html/
EXPOSE 80
CMD ["apache2-foreground"]
`
	}
	return ""
}
